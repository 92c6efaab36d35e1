// Package publisher streams analyzer results to gRPC clients.
//
// The service is a hand-written grpc.ServiceDesc with one server-streaming
// method, Subscribe, taking google.protobuf.Empty and sending
// google.protobuf.Struct messages.
package publisher

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "pulse.v1.ResultStream"

	subscribeMethod = "/" + ServiceName + "/Subscribe"
)

// ResultStreamServer is implemented by Publisher.
type ResultStreamServer interface {
	Subscribe(*emptypb.Empty, grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResultStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "pulse/v1/result_stream.proto",
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	req := new(emptypb.Empty)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ResultStreamServer).Subscribe(req, stream)
}

// RegisterService registers srv on s.
func RegisterService(s grpc.ServiceRegistrar, srv ResultStreamServer) {
	s.RegisterService(&serviceDesc, srv)
}

// ResultToStruct encodes r using the same field names as its JSON form.
func ResultToStruct(r ppg.Result) *structpb.Struct {
	intervals := make([]*structpb.Value, len(r.Intervals))
	for i, iv := range r.Intervals {
		intervals[i] = structpb.NewNumberValue(float64(iv))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"timestamp_ms":    structpb.NewNumberValue(float64(r.Timestamp)),
		"finger_detected": structpb.NewBoolValue(r.FingerDetected),
		"heart_rate":      structpb.NewNumberValue(float64(r.HeartRate)),
		"raw_rate":        structpb.NewNumberValue(float64(r.RawRate)),
		"sdnn":            structpb.NewNumberValue(float64(r.SDNN)),
		"rmssd":           structpb.NewNumberValue(float64(r.RMSSD)),
		"hr_effective":    structpb.NewNumberValue(r.HREffective),
		"hrv_effective":   structpb.NewNumberValue(r.HRVEffective),
		"has_variability": structpb.NewBoolValue(r.HasVariability),
		"intervals":       structpb.NewListValue(&structpb.ListValue{Values: intervals}),
	}}
}

// StructToResult decodes a message produced by ResultToStruct. Missing
// fields decode as zero.
func StructToResult(s *structpb.Struct) ppg.Result {
	f := s.GetFields()
	num := func(k string) float64 { return f[k].GetNumberValue() }

	r := ppg.Result{
		Timestamp:      int64(num("timestamp_ms")),
		FingerDetected: f["finger_detected"].GetBoolValue(),
		HeartRate:      int(num("heart_rate")),
		RawRate:        int(num("raw_rate")),
		SDNN:           int(num("sdnn")),
		RMSSD:          int(num("rmssd")),
		HREffective:    num("hr_effective"),
		HRVEffective:   num("hrv_effective"),
		HasVariability: f["has_variability"].GetBoolValue(),
	}
	for _, v := range f["intervals"].GetListValue().GetValues() {
		r.Intervals = append(r.Intervals, ppg.Interval(v.GetNumberValue()))
	}
	return r
}

// Subscribe opens a result stream on cc. The returned function blocks for
// the next result and returns io.EOF once the server ends the stream.
func Subscribe(ctx context.Context, cc grpc.ClientConnInterface) (func() (ppg.Result, error), error) {
	stream, err := cc.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("open result stream: %w", err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close send: %w", err)
	}
	return func() (ppg.Result, error) {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			return ppg.Result{}, err
		}
		return StructToResult(msg), nil
	}, nil
}
