package vm

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCOpLibrary is an OpLibrary backed by a remote gRPC service's
// reflected method set. A primitive operator name resolves if the
// remote service exposes a method of the same name. This is descriptor
// lookup only: GRPCOpLibrary never issues the RPC that would actually
// invoke an operator, keeping bytecode execution out of this package's
// scope.
type GRPCOpLibrary struct {
	conn        *grpc.ClientConn
	reflClient  *grpcreflect.Client
	serviceName string

	mu       sync.Mutex
	resolved *desc.ServiceDescriptor
}

// NewGRPCOpLibrary dials target and prepares a reflection client scoped
// to serviceName, the gRPC service whose methods name this library's
// primitive operators.
func NewGRPCOpLibrary(ctx context.Context, target, serviceName string) (*GRPCOpLibrary, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("vm: dialing operator library at %s: %w", target, err)
	}
	reflClient := grpcreflect.NewClientAuto(ctx, conn)
	return &GRPCOpLibrary{
		conn:        conn,
		reflClient:  reflClient,
		serviceName: serviceName,
	}, nil
}

// Close releases the underlying gRPC connection and reflection client.
func (l *GRPCOpLibrary) Close() error {
	l.reflClient.Reset()
	return l.conn.Close()
}

func (l *GRPCOpLibrary) service() (*desc.ServiceDescriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved != nil {
		return l.resolved, nil
	}
	svc, err := l.reflClient.ResolveService(l.serviceName)
	if err != nil {
		return nil, fmt.Errorf("vm: resolving operator library service %s: %w", l.serviceName, err)
	}
	l.resolved = svc
	return svc, nil
}

// HasPrimitive reports whether the remote service exposes a method
// named name. Reflection failures are treated as "not resolvable"
// rather than propagated, since OpLibrary is an opaque handle whose
// HasPrimitive has no error return.
func (l *GRPCOpLibrary) HasPrimitive(name string) bool {
	svc, err := l.service()
	if err != nil {
		return false
	}
	return svc.FindMethodByName(name) != nil
}
