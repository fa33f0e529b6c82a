package tcp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ryoozeen/RCS/internal/observability"
	"github.com/ryoozeen/RCS/internal/protocol"
)

const defaultCredentialTimeout = 5 * time.Second

// RouterOptions configures a Router. Zero values pick the defaults.
type RouterOptions struct {
	// AllowOperatorIdentify lets a client claim the Operator role through
	// IDENTIFY alone. When false operators must pass LOGIN.
	AllowOperatorIdentify bool
	CredentialTimeout     time.Duration
	// Sessions issues and accepts login tokens; nil disables them.
	Sessions *TCPAuthService
	Logger   *slog.Logger
}

// Router decides what happens to every decoded message: handshake messages
// are answered locally, control requests go to the agent, control responses
// go to the operator.
type Router struct {
	registry *Registry
	store    CredentialStore
	opts     RouterOptions
	logger   *slog.Logger
}

func NewRouter(registry *Registry, store CredentialStore, opts RouterOptions) *Router {
	if opts.CredentialTimeout <= 0 {
		opts.CredentialTimeout = defaultCredentialTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, store: store, opts: opts, logger: logger}
}

// HandleMessage routes one message received from the connection source. It
// runs on that connection's read loop.
func (r *Router) HandleMessage(ctx context.Context, source string, msg protocol.Message) {
	tag := msg.Tag()
	r.logReceived(source, msg)

	switch m := msg.(type) {
	case *protocol.IdentifyReq:
		r.handleIdentify(source, m)
	case *protocol.EnrollReq:
		r.handleEnroll(ctx, source, m)
	case *protocol.LoginReq:
		r.handleLogin(ctx, source, m)
	case *protocol.ParkRes:
		markParkState(m)
		r.forward(source, m, RoleOperator)
	default:
		switch {
		case tag.IsControl() && tag.IsRequest():
			r.forward(source, msg, RoleAgent)
		case tag.IsControl() && tag.IsResponse():
			r.forward(source, msg, RoleOperator)
		default:
			// handshake responses are only ever sent by the relay
			r.logger.Debug("message_ignored", "client_id", source, "tag", tag)
			observability.RecordRoute(string(tag), observability.OutcomeIgnored)
		}
	}
}

// HandleDisconnect drops source from the registry.
func (r *Router) HandleDisconnect(source string) {
	role := r.registry.Remove(source)
	r.logger.Info("client_disconnected_role", "client_id", source, "role", role)
}

func (r *Router) handleIdentify(source string, req *protocol.IdentifyReq) {
	role := ParseRole(req.ClientName)
	res := &protocol.IdentifyRes{Identified: true}

	switch {
	case role == RoleOperator && !r.opts.AllowOperatorIdentify:
		res.Identified = false
		res.Reason = "operators must log in"
	case !r.registry.Identify(source, role):
		// the connection is already gone
		return
	}

	r.logger.Info("identify_answered",
		"client_id", source,
		"client_name", req.ClientName,
		"role", role,
		"identified", res.Identified,
	)
	observability.RecordRoute(string(req.Tag()), observability.OutcomeLocal)
	r.reply(source, res)
}

func (r *Router) handleEnroll(ctx context.Context, source string, req *protocol.EnrollReq) {
	res := &protocol.EnrollRes{}

	if req.ID == "" || req.Password == "" {
		res.Reason = "id and password are required"
	} else {
		n, err := r.callStore(ctx, func(ctx context.Context) (int64, error) {
			return r.store.Enroll(ctx, Enrollment{
				ID:             req.ID,
				PasswordDigest: req.Password,
				DisplayName:    req.Username,
				CarModel:       req.CarModel,
			})
		})
		if err != nil {
			r.logger.Error("enroll_failed", "client_id", source, "login_id", req.ID, "error", err)
			res.Reason = "enrollment unavailable"
		} else if n <= 0 {
			res.Reason = "id already registered"
		}
		res.Registered = err == nil && n > 0
		observability.RecordCredentialCheck("enroll", res.Registered)
	}

	r.logger.Info("operator_enroll",
		"client_id", source,
		"login_id", req.ID,
		"registered", res.Registered,
	)
	observability.RecordRoute(string(req.Tag()), observability.OutcomeLocal)
	r.reply(source, res)
}

func (r *Router) handleLogin(ctx context.Context, source string, req *protocol.LoginReq) {
	res := &protocol.LoginRes{}
	loginID := req.ID

	switch {
	case req.Token != "" && r.opts.Sessions != nil:
		id, err := r.opts.Sessions.ValidateToken(req.Token)
		if err != nil || (req.ID != "" && req.ID != id) {
			r.logger.Warn("session_token_rejected", "client_id", source, "login_id", req.ID)
			res.Reason = "invalid session token"
			break
		}
		loginID = id
		res.Logined = true
	case req.ID == "" || req.Password == "":
		res.Reason = "id and password are required"
	default:
		n, err := r.callStore(ctx, func(ctx context.Context) (int64, error) {
			return r.store.Verify(ctx, req.ID, req.Password)
		})
		if err != nil {
			r.logger.Error("login_failed", "client_id", source, "login_id", req.ID, "error", err)
			res.Reason = "login unavailable"
		} else if n <= 0 {
			res.Reason = "invalid credentials"
		}
		res.Logined = err == nil && n > 0
	}
	observability.RecordCredentialCheck("login", res.Logined)

	if res.Logined {
		if !r.registry.Identify(source, RoleOperator) {
			return
		}
		if r.opts.Sessions != nil {
			token, err := r.opts.Sessions.IssueToken(loginID)
			if err != nil {
				r.logger.Error("session_token_failed", "client_id", source, "error", err)
			}
			res.Token = token
		}
	}

	r.logger.Info("operator_login",
		"client_id", source,
		"login_id", loginID,
		"logined", res.Logined,
	)
	observability.RecordRoute(string(req.Tag()), observability.OutcomeLocal)
	r.reply(source, res)
}

// callStore runs fn against the credential store with the configured timeout.
func (r *Router) callStore(ctx context.Context, fn func(context.Context) (int64, error)) (int64, error) {
	if r.store == nil {
		return 0, ErrNoCredentialStore
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.CredentialTimeout)
	defer cancel()
	return fn(ctx)
}

// forward sends msg to the earliest registered client with the target role.
// With no such client the message is dropped.
func (r *Router) forward(source string, msg protocol.Message, role Role) {
	tag := msg.Tag()
	target, ok := r.registry.FirstWithRole(role)
	var peer Peer
	if ok {
		peer, ok = r.registry.Lookup(target)
	}
	if !ok {
		r.logAt(tag, "route_target_missing", "client_id", source, "tag", tag, "target_role", role)
		observability.RecordRoute(string(tag), observability.OutcomeDropped)
		return
	}

	if err := peer.Send(msg); err != nil {
		r.logger.Warn("route_send_failed", "client_id", source, "target_id", target, "tag", tag, "error", err)
		observability.RecordRoute(string(tag), observability.OutcomeDropped)
		return
	}
	r.logAt(tag, "message_forwarded", "client_id", source, "target_id", target, "tag", tag)
	observability.RecordRoute(string(tag), observability.OutcomeForwarded)
}

func (r *Router) reply(target string, msg protocol.Message) {
	peer, ok := r.registry.Lookup(target)
	if !ok {
		return
	}
	if err := peer.Send(msg); err != nil {
		r.logger.Warn("reply_failed", "client_id", target, "tag", msg.Tag(), "error", err)
	}
}

func (r *Router) logReceived(source string, msg protocol.Message) {
	attrs := []any{"client_id", source, "tag", msg.Tag()}
	if reason := msg.GetReason(); reason != "" {
		attrs = append(attrs, "reason", reason)
	}
	r.logAt(msg.Tag(), "message_received", attrs...)
}

// logAt keeps status polling out of the info log.
func (r *Router) logAt(tag protocol.Tag, event string, attrs ...any) {
	if tag == protocol.TagStatusReq || tag == protocol.TagStatusRes {
		r.logger.Debug(event, attrs...)
		return
	}
	r.logger.Info(event, attrs...)
}

var (
	parkingMarkers   = []string{"주차", "parking"}
	departingMarkers = []string{"출차", "departing", "driving"}
)

// markParkState fills Parking and Driving from the progress text in the reason.
func markParkState(res *protocol.ParkRes) {
	reason := strings.ToLower(res.Reason)
	res.Parking = res.Parking || containsAny(reason, parkingMarkers)
	res.Driving = res.Driving || containsAny(reason, departingMarkers)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
