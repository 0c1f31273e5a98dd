package notify

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const pushSendMethod = "/push.PushService/Send"

// PushSender forwards notifications to the push gateway over gRPC. The
// request is a google.protobuf.Struct so no generated stubs are needed.
type PushSender struct {
	conn *grpc.ClientConn
}

func NewPushSender(addr string) (*PushSender, error) {
	if addr == "" {
		addr = "localhost:5010"
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to push service: %v", err)
	}
	return &PushSender{conn: conn}, nil
}

// pushRequest flattens n into the Struct the gateway expects.
func pushRequest(n Notification) (*structpb.Struct, error) {
	payload := make(map[string]interface{}, len(n.Payload))
	for k, v := range n.Payload {
		payload[k] = v
	}
	return structpb.NewStruct(map[string]interface{}{
		"kind":    n.Kind,
		"user_id": n.UserId,
		"title":   n.Title,
		"body":    n.Body,
		"payload": payload,
		"sent_at": n.SentAt.UTC().Format(time.RFC3339),
	})
}

func (s *PushSender) Send(ctx context.Context, n Notification) error {
	req, err := pushRequest(n)
	if err != nil {
		return err
	}
	return s.conn.Invoke(ctx, pushSendMethod, req, &emptypb.Empty{})
}

func (s *PushSender) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}
