package gateway

import (
	"context"
	"crypto/sha1" //nolint:gosec // mandated by the gateway's password scheme
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/encoding/charmap"

	"github.com/aelexs/otp-dispatch/internal/domain"
	"github.com/aelexs/otp-dispatch/internal/transport"
)

// SignedGatewayName is the registry name of the signed government gateway.
const SignedGatewayName = "signed"

const smsServiceTypeOTP = "otpmsg"

// SignedConfig configures a SignedGateway.
type SignedConfig struct {
	Endpoint      string
	Username      string
	Password      domain.SecretString
	SenderID      string
	SecureKey     domain.SecretString
	TemplateID    string
	MessagePrefix string
	MessageSuffix string
	CodeLength    int

	// TLS is forced onto every exchange: the legacy endpoint only negotiates
	// a narrow version range.
	TLS transport.TLSConfig
}

// SignedGateway delivers through the government SMS gateway, which
// authenticates each request with a SHA-1 password digest and a SHA-512
// signature over the sender and message.
type SignedGateway struct {
	sender Sender
	cfg    SignedConfig
}

// NewSignedGateway creates a SignedGateway.
func NewSignedGateway(sender Sender, cfg SignedConfig) *SignedGateway {
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = domain.SignedGatewayCodeLength
	}
	return &SignedGateway{sender: sender, cfg: cfg}
}

func (g *SignedGateway) Name() string    { return SignedGatewayName }
func (g *SignedGateway) CodeLength() int { return g.cfg.CodeLength }

// Message composes the SMS text around the code. An empty prefix or suffix
// is dropped rather than leaving a stray space in the content field.
func (g *SignedGateway) Message(code string) string {
	return strings.Join(lo.Compact([]string{g.cfg.MessagePrefix, code, g.cfg.MessageSuffix}), " ")
}

// Deliver signs and posts the form.
func (g *SignedGateway) Deliver(ctx context.Context, req Request) transport.Result {
	fail := func(err error) transport.Result {
		return transport.Result{RequestID: req.Transport.RequestID, Gateway: g.Name(), Err: err}
	}

	password, err := HashPassword(g.cfg.Password.Expose())
	if err != nil {
		return fail(err)
	}

	message := g.Message(req.OTP)
	form := url.Values{
		"mobileno":       {req.MobileNumber.String()},
		"senderid":       {g.cfg.SenderID},
		"content":        {message},
		"smsservicetype": {smsServiceTypeOTP},
		"username":       {g.cfg.Username},
		"password":       {password},
		"key":            {SigningKey(g.cfg.Username, g.cfg.SenderID, message, g.cfg.SecureKey.Expose())},
		"templateid":     {g.cfg.TemplateID},
	}

	cfg := req.Transport
	cfg.TLS = g.cfg.TLS
	cfg.Headers = lo.Assign(map[string]string{"Content-Type": "application/x-www-form-urlencoded"}, req.Transport.Headers)

	res := g.sender.Send(ctx, http.MethodPost, g.cfg.Endpoint, []byte(form.Encode()), cfg)
	res.Gateway = g.Name()
	return res
}

// Check accepts exactly 200; the payload format is gateway specific and
// treated as opaque.
func (g *SignedGateway) Check(res transport.Result) error {
	return checkStatus(res, http.StatusOK, http.StatusOK)
}

// HashPassword returns hex(SHA-1(password encoded as ISO-8859-1)).
// Passwords with characters outside Latin-1 cannot be represented and are
// rejected with domain.ErrInvalidArgument.
func HashPassword(password string) (string, error) {
	latin1, err := charmap.ISO8859_1.NewEncoder().String(password)
	if err != nil {
		return "", fmt.Errorf("encode password as ISO-8859-1: %w", domain.ErrInvalidArgument)
	}
	sum := sha1.Sum([]byte(latin1)) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}

// SigningKey returns hex(SHA-512(trim(username)+trim(senderID)+trim(message)+trim(secureKey))).
func SigningKey(username, senderID, message, secureKey string) string {
	h := sha512.New()
	for _, part := range []string{username, senderID, message, secureKey} {
		h.Write([]byte(strings.TrimSpace(part)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

var _ Gateway = (*SignedGateway)(nil)
