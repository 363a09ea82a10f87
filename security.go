package auth

import (
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"time"

	"github.com/xompass/vsaas-auth/token"
)

type LogLevel uint8

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var LogLevelLabels = map[LogLevel]string{
	LogLevelDebug: "DEBUG",
	LogLevelInfo:  "INFO",
	LogLevelWarn:  "WARN",
	LogLevelError: "ERROR",
}

// Fields names the extractable fields of the externally owned principal.
type Fields struct {
	ID    string
	Roles string
}

// Params names the request parameters consulted by the built-in guards.
type Params struct {
	ID string
}

type Options struct {
	// Validate is the injected credential validator. Required.
	Validate CredentialValidator

	// SessionKey is the shared secret for token signing. A random key is
	// generated when neither it nor a key pair is configured, which makes
	// tokens worthless across restarts; fine for tests, not for production.
	SessionKey string

	// PrivateKeyPEM/PublicKeyPEM switch token signing to RSA.
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte

	// EncryptHeader obscures the auth token with a stream cipher before it
	// is written to the response header.
	EncryptHeader bool

	// Expiry is the session TTL in minutes. Defaults to 15.
	Expiry int

	Fields Fields
	Params Params

	// AuthHeader/UserHeader override the default X-CS-Auth / X-CS-User
	// response header names.
	AuthHeader string
	UserHeader string

	// Store enables server-side sessions. Nil means stateless tokens only.
	Store SessionStore

	// Loaders are the named per-rule context providers available to the
	// declarative engine.
	Loaders map[string]Loader

	LogLevel LogLevel
}

// Security is the configured engine. It holds no request state; everything
// per-request lives on the echo context.
type Security struct {
	options    Options
	codec      *token.Codec
	store      SessionStore
	authHeader string
	userHeader string
	expiry     time.Duration
	fields     Fields
	params     Params
}

func New(options Options) (*Security, error) {
	if options.Validate == nil {
		return nil, errors.New("auth: a credential validator is required")
	}

	if options.Expiry <= 0 {
		options.Expiry = DefaultExpiry
	}
	if options.Fields.ID == "" {
		options.Fields.ID = DefaultIDField
	}
	if options.Fields.Roles == "" {
		options.Fields.Roles = DefaultRolesField
	}
	if options.Params.ID == "" {
		options.Params.ID = DefaultIDParam
	}
	if options.AuthHeader == "" {
		options.AuthHeader = DefaultAuthHeader
	}
	if options.UserHeader == "" {
		options.UserHeader = DefaultUserHeader
	}
	if options.SessionKey == "" && len(options.PrivateKeyPEM) == 0 {
		options.SessionKey = genRandomString(64)
	}

	codec, err := token.NewCodec(token.Options{
		Secret:        []byte(options.SessionKey),
		PrivateKeyPEM: options.PrivateKeyPEM,
		PublicKeyPEM:  options.PublicKeyPEM,
		Encrypt:       options.EncryptHeader,
	})
	if err != nil {
		return nil, err
	}

	return &Security{
		options:    options,
		codec:      codec,
		store:      options.Store,
		authHeader: options.AuthHeader,
		userHeader: options.UserHeader,
		expiry:     time.Duration(options.Expiry) * time.Minute,
		fields:     options.Fields,
		params:     options.Params,
	}, nil
}

// Codec exposes the token codec, e.g. to mint long-lived service tokens.
func (s *Security) Codec() *token.Codec {
	return s.codec
}

// AuthHeader returns the configured auth-status response header name.
func (s *Security) AuthHeader() string {
	return s.authHeader
}

// UserHeader returns the configured principal response header name.
func (s *Security) UserHeader() string {
	return s.userHeader
}

// Loader returns the named declarative loader, or nil.
func (s *Security) Loader(name string) Loader {
	return s.options.Loaders[name]
}

func (s *Security) Debugf(format string, args ...any) {
	s.log(LogLevelDebug, format, args...)
}

func (s *Security) Infof(format string, args ...any) {
	s.log(LogLevelInfo, format, args...)
}

func (s *Security) Warnf(format string, args ...any) {
	s.log(LogLevelWarn, format, args...)
}

func (s *Security) Errorf(format string, args ...any) {
	s.log(LogLevelError, format, args...)
}

func (s *Security) log(level LogLevel, format string, args ...any) {
	if s == nil || s.options.LogLevel > level {
		return
	}

	label, exists := LogLevelLabels[level]
	if !exists {
		label = "UNKNOWN"
	}

	args = append([]any{label}, args...)

	log.Printf("[%s] "+format, args...)
}

const randomChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func genRandomString(length int) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(randomChars)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		out[i] = randomChars[n.Int64()]
	}
	return string(out)
}
