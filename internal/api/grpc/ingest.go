// Package grpc provides the gRPC ingress adapter: a unary submit mirror of
// the HTTP endpoint plus the bidirectional streaming entry point.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	protov1 "github.com/golang/protobuf/proto"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lessonpulse/lessonpulse/api/proto"
	pipeerr "github.com/lessonpulse/lessonpulse/internal/errors"
	"github.com/lessonpulse/lessonpulse/internal/ingest"
	"github.com/lessonpulse/lessonpulse/pkg/types"
)

// StreamWindow bounds the logical batch window of one streaming session.
type StreamWindow struct {
	MaxEvents int
	MaxAge    time.Duration
}

// IngestServer implements proto.IngestServiceServer.
type IngestServer struct {
	proto.UnimplementedIngestServiceServer
	processor *ingest.Processor
	window    StreamWindow
}

// NewIngestServer creates a gRPC ingest server.
func NewIngestServer(p *ingest.Processor, window StreamWindow) *IngestServer {
	if window.MaxEvents <= 0 {
		window.MaxEvents = 100
	}
	if window.MaxAge <= 0 {
		window.MaxAge = time.Second
	}
	return &IngestServer{processor: p, window: window}
}

// Register attaches the server to a grpc.Server.
func (s *IngestServer) Register(srv *gogrpc.Server) {
	proto.RegisterIngestServiceServer(srv, s)
}

// Submit handles one-or-many event submission.
func (s *IngestServer) Submit(ctx context.Context, req *proto.SubmitRequest) (*proto.SubmitResponse, error) {
	limits := s.processor.Limits()
	if size := int64(protov1.Size(req)); size > limits.MaxBatchBytes {
		return nil, status.Errorf(codes.ResourceExhausted,
			"request of %d bytes exceeds limit of %d", size, limits.MaxBatchBytes)
	}

	events, err := eventsFromProto(req.GetEvents())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid event: %v", err)
	}
	if err := ingest.CheckBatchBounds(events, limits); err != nil {
		return nil, toStatus(err)
	}

	result, err := s.processor.Submit(ctx, events)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &proto.SubmitResponse{
		BatchId:  result.BatchID,
		Accepted: int32(result.Accepted),
		Rejected: int32(result.Rejected),
	}
	for _, r := range result.Results {
		resp.Statuses = append(resp.Statuses, &proto.EventStatus{
			Index:    int32(r.Index),
			Accepted: r.Accepted,
			Reason:   r.Reason,
		})
	}
	return resp, nil
}

// StreamEvents accepts a continuous event sequence. Events accumulate into a
// window bounded by count or age; every closed window is acknowledged
// independently. Cancelling the stream drops only the open, un-acked window;
// acknowledged windows are already durably appended, so cancellation can
// never double-accept.
func (s *IngestServer) StreamEvents(stream proto.IngestService_StreamEventsServer) error {
	ctx := stream.Context()

	type recvResult struct {
		ev  *proto.Event
		err error
	}
	// Bounded queue per stream session: the receive goroutine blocks once
	// the window loop falls behind, pushing backpressure onto the client.
	recvCh := make(chan recvResult, s.window.MaxEvents)
	go func() {
		defer close(recvCh)
		for {
			ev, err := stream.Recv()
			select {
			case recvCh <- recvResult{ev: ev, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	builder := newWindowBuilder(s.window.MaxEvents, s.window.MaxAge)
	flush := func() error {
		if builder.empty() {
			return nil
		}
		result, err := s.processor.Submit(ctx, builder.take())
		if err != nil {
			return toStatus(err)
		}
		return stream.Send(&proto.WindowAck{
			BatchId:  result.BatchID,
			Accepted: int32(result.Accepted),
			Rejected: int32(result.Rejected),
		})
	}

	ticker := time.NewTicker(s.window.MaxAge)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()

		case r, ok := <-recvCh:
			if !ok {
				return status.FromContextError(ctx.Err()).Err()
			}
			if r.err == io.EOF {
				// Clean end of stream: the final partial window still gets
				// its acknowledgement.
				return flush()
			}
			if r.err != nil {
				return r.err
			}

			ev, err := eventFromProto(r.ev)
			if err != nil {
				return status.Errorf(codes.InvalidArgument, "invalid event: %v", err)
			}
			if builder.add(ev) {
				if err := flush(); err != nil {
					return err
				}
			}

		case now := <-ticker.C:
			if builder.expired(now) {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// eventsFromProto converts a wire batch, failing on the first undecodable event.
func eventsFromProto(in []*proto.Event) ([]types.Event, error) {
	out := make([]types.Event, 0, len(in))
	for i, pe := range in {
		ev, err := eventFromProto(pe)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// eventFromProto decodes one wire event into the canonical form.
func eventFromProto(pe *proto.Event) (types.Event, error) {
	if pe == nil {
		return types.Event{}, fmt.Errorf("event is nil")
	}

	ev := types.Event{
		LearnerID: pe.GetLearnerId(),
		CourseID:  pe.GetCourseId(),
		LessonID:  pe.GetLessonId(),
		SessionID: pe.GetSessionId(),
		EventType: pe.GetEventType(),
		Timestamp: time.UnixMilli(pe.GetTimestampUnixMs()),
	}
	if pe.GetTimestampUnixMs() == 0 {
		ev.Timestamp = time.Time{}
	}

	if len(pe.GetPayload()) > 0 {
		if err := json.Unmarshal(pe.GetPayload(), &ev.Payload); err != nil {
			return types.Event{}, fmt.Errorf("payload is not a JSON object: %v", err)
		}
	}
	if len(pe.GetMetadata()) > 0 {
		ev.Metadata = make(map[string]string, len(pe.GetMetadata()))
		for _, attr := range pe.GetMetadata() {
			ev.Metadata[attr.GetKey()] = attr.GetValue()
		}
	}
	return ev, nil
}

// toStatus maps pipeline errors onto gRPC status codes.
func toStatus(err error) error {
	switch pipeerr.Code(err) {
	case pipeerr.CodeInvalidArgument, pipeerr.CodeValidationFailed:
		return status.Error(codes.InvalidArgument, err.Error())
	case pipeerr.CodePayloadTooLarge:
		return status.Error(codes.ResourceExhausted, err.Error())
	case pipeerr.CodeResourceExhausted:
		return status.Error(codes.ResourceExhausted, err.Error())
	case pipeerr.CodeDeadlineExceeded:
		return status.Error(codes.DeadlineExceeded, err.Error())
	case pipeerr.CodeUnavailable, pipeerr.CodeJournalClosed:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
