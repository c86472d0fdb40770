package hostfunc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/qbradley/hyperlight/call"
)

// Handler answers guest-to-host call envelopes against a registry. It is
// total: every failure comes back as an encoded error result, the guest
// is never trapped.
type Handler struct {
	reg   *Registry
	codec call.Codec
	log   *slog.Logger
}

type handlerConfig struct {
	codec  call.Codec
	logger *slog.Logger
}

// HandlerOption configures a Handler at creation time.
type HandlerOption func(*handlerConfig)

// WithCodec replaces the default deterministic CBOR codec.
func WithCodec(c call.Codec) HandlerOption {
	return func(cfg *handlerConfig) { cfg.codec = c }
}

// WithLogger sets the logger for failed host calls. Nil discards them.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(cfg *handlerConfig) { cfg.logger = l }
}

func NewHandler(reg *Registry, opts ...HandlerOption) *Handler {
	cfg := handlerConfig{codec: call.NewCodec()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{reg: reg, codec: cfg.codec, log: cfg.logger}
}

// Handle services one encoded host-call envelope and returns the encoded
// result. Failures the guest caused nothing of are reported with the
// generic host-failure code and a diagnostic string; a signature
// violation is reported as a type mismatch and the function body never
// runs.
func (h *Handler) Handle(ctx context.Context, envelope []byte) []byte {
	res := h.handle(ctx, envelope)
	if res.Err != nil {
		h.log.Debug("host call failed", "code", res.Err.Code.String(), "err", res.Err.Message)
	}
	out, err := h.codec.EncodeResult(res)
	if err != nil {
		out, _ = h.codec.EncodeResult(call.Fail(call.Errorf(call.CodeHostCallFailed, "encode result: %v", err)))
	}
	return out
}

func (h *Handler) handle(ctx context.Context, envelope []byte) call.Result {
	fc, err := h.codec.DecodeCall(envelope)
	if err != nil {
		return call.Fail(call.Errorf(call.CodeHostCallFailed, "decode host call: %v", err))
	}

	def, ok := h.reg.Lookup(fc.Name)
	if !ok {
		return call.Fail(call.Errorf(call.CodeHostCallFailed, "unknown host function %s", fc.Name))
	}

	if verr := call.VerifyParams(fc.Name, def.Params, fc.Params); verr != nil {
		return call.Fail(verr)
	}

	v, err := def.Fn(ctx, fc.Params)
	if err != nil {
		var cerr *call.Error
		if errors.As(err, &cerr) {
			return call.Fail(cerr)
		}
		return call.Fail(call.Errorf(call.CodeHostCallFailed, "%s: %v", fc.Name, err))
	}
	return call.Ok(v)
}
