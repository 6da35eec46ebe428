package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/quillbooking/internal/idgen"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// defaultActor is recorded for admin changes made with a shared token or
// with auth disabled.
const defaultActor = "admin"

// Operators maps bearer tokens to the operator name recorded as the actor of
// audit events. An empty set disables auth.
type Operators map[string]string

// ParseOperators reads the QUILL_AUTH_TOKEN format: a single shared token,
// or comma-separated name:token pairs such as "ada:s3cret,grace:hunter2".
func ParseOperators(s string) Operators {
	ops := Operators{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, token, ok := strings.Cut(part, ":")
		if !ok {
			name, token = defaultActor, part
		}
		name, token = strings.TrimSpace(name), strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if name == "" {
			name = defaultActor
		}
		ops[token] = name
	}
	return ops
}

// authenticate compares provided against every token so the time taken does
// not reveal which one matched.
func (o Operators) authenticate(provided string) (string, bool) {
	var name string
	found := false
	for token, n := range o {
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) == 1 {
			name, found = n, true
		}
	}
	return name, found
}

var (
	errNoCredentials = errors.New("missing authorization header")
	errBadScheme     = errors.New("invalid authorization scheme")
	errBadToken      = errors.New("invalid token")
)

// verify checks an Authorization header value and returns the operator name.
func (o Operators) verify(header string) (string, error) {
	if header == "" {
		return "", errNoCredentials
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errBadScheme
	}
	name, ok := o.authenticate(token)
	if !ok {
		return "", errBadToken
	}
	return name, nil
}

type operatorKey struct{}

// OperatorFrom returns the authenticated operator stored on ctx.
func OperatorFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(operatorKey{}).(string)
	return name, ok
}

func withOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operatorKey{}, name)
}

// AuthInterceptor rejects unary RPCs without a valid operator token. The
// standard health service is always exempt.
func AuthInterceptor(ops Operators) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if len(ops) == 0 || strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		var header string
		if vals := md.Get("authorization"); len(vals) > 0 {
			header = vals[0]
		}
		name, err := ops.verify(header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(withOperator(ctx, name), req)
	}
}

// AuthMiddleware rejects admin requests without a valid operator token and
// stores the operator on the request context. Guest-facing routes (see
// isPublic) are always exempt.
func AuthMiddleware(ops Operators, next http.Handler) http.Handler {
	if len(ops) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r) {
			next.ServeHTTP(w, r)
			return
		}
		name, err := ops.verify(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(withOperator(r.Context(), name)))
	})
}

const healthServicePrefix = "/grpc.health.v1.Health/"

// isPublic reports whether a request is served without a token: health and
// metrics scrapes, the field list and event meta a booking form renders from,
// the booking endpoint itself and a lookup of a booking by its hash id.
func isPublic(r *http.Request) bool {
	path := r.URL.Path
	if r.Method == http.MethodPost {
		return path == "/v1/ajax"
	}
	if r.Method != http.MethodGet {
		return false
	}
	switch path {
	case "/v1/health", "/metrics":
		return true
	}
	if rest, ok := strings.CutPrefix(path, "/v1/events/"); ok {
		id, tail, _ := strings.Cut(rest, "/")
		return id != "" && id != "stream" && (tail == "meta" || tail == "meta/fields")
	}
	if rest, ok := strings.CutPrefix(path, "/v1/bookings/"); ok {
		return idgen.IsHashID(rest)
	}
	return false
}
