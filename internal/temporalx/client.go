package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

const (
	dialBackoff    = 250 * time.Millisecond
	dialBackoffMax = 5 * time.Second
	nsEnsureWait   = 10 * time.Second
)

// NewClient dials Temporal, retrying until cfg.DialMaxWait has passed. A
// disabled config returns (nil, nil) and the caller falls back to polling.
func NewClient(log *logger.Logger, cfg Config) (temporalsdkclient.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	cfg = cfg.withDefaults()
	opts, err := clientOptions(log, cfg, true)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), max(cfg.DialMaxWait, cfg.DialTimeout))
	defer cancel()

	var c temporalsdkclient.Client
	err = retry(ctx, func(attempt int) (bool, error) {
		dialCtx, dialCancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer dialCancel()
		var dErr error
		c, dErr = temporalsdkclient.DialContext(dialCtx, opts)
		if dErr == nil {
			if attempt > 1 {
				log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			return false, nil
		}
		if cfg.DialMaxWait <= 0 {
			return false, dErr
		}
		log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "attempt", attempt, "error", dErr)
		return true, dErr
	})
	if err != nil {
		return nil, fmt.Errorf("temporal dial %s/%s: %w", cfg.Address, cfg.Namespace, err)
	}

	if cfg.AutoRegisterNamespace {
		if err := EnsureNamespace(context.Background(), log, cfg); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// EnsureNamespace registers the namespace when Describe reports it
// missing. Managed Temporal namespaces are expected to exist already.
func EnsureNamespace(ctx context.Context, log *logger.Logger, cfg Config) error {
	if !cfg.Enabled() {
		return nil
	}
	cfg = cfg.withDefaults()
	// no namespace header, so this works before the namespace exists
	opts, err := clientOptions(log, cfg, false)
	if err != nil {
		return err
	}
	ns, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace client: %w", err)
	}
	defer ns.Close()

	ctx, cancel := context.WithTimeout(ctx, nsEnsureWait)
	defer cancel()

	return retry(ctx, func(attempt int) (bool, error) {
		_, err := ns.Describe(ctx, cfg.Namespace)
		var missing *serviceerror.NamespaceNotFound
		switch {
		case err == nil:
			return false, nil
		case errors.As(err, &missing):
			return register(ctx, log, ns, cfg)
		case retryableRPC(err):
			log.Warn("Temporal namespace describe retrying", "namespace", cfg.Namespace, "attempt", attempt, "error", err)
			return true, err
		default:
			return false, fmt.Errorf("describe namespace %s: %w", cfg.Namespace, err)
		}
	})
}

func register(ctx context.Context, log *logger.Logger, ns temporalsdkclient.NamespaceClient, cfg Config) (bool, error) {
	err := ns.Register(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        cfg.Namespace,
		Description:                      "nearby analysis jobs",
		WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(cfg.RetentionDays) * 24 * time.Hour),
	})
	var exists *serviceerror.NamespaceAlreadyExists
	switch {
	case err == nil:
		log.Info("Registered Temporal namespace", "namespace", cfg.Namespace, "retention_days", cfg.RetentionDays)
		return false, nil
	case errors.As(err, &exists):
		return false, nil
	case retryableRPC(err):
		return true, err
	default:
		return false, fmt.Errorf("register namespace %s: %w", cfg.Namespace, err)
	}
}

func clientOptions(log *logger.Logger, cfg Config, withNamespace bool) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{HostPort: cfg.Address, Logger: log}
	if withNamespace {
		opts.Namespace = cfg.Namespace
	}
	if cfg.ClientCertPath == "" && cfg.ClientKeyPath == "" && cfg.ClientCAPath == "" {
		return opts, nil
	}
	tlsCfg, err := loadTLSConfig(cfg)
	if err != nil {
		return opts, err
	}
	opts.ConnectionOptions.TLS = tlsCfg
	return opts, nil
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, errors.New("temporal tls: mTLS needs both a client cert and key")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client keypair: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if cfg.ClientCAPath == "" {
		return tlsCfg, nil
	}
	pem, err := os.ReadFile(cfg.ClientCAPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: read CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("temporal tls: CA file holds no certificates")
	}
	tlsCfg.RootCAs = pool
	return tlsCfg, nil
}

// retry calls fn until it reports done or a non-retryable error, sleeping
// ClampBackoff between attempts. The last attempt's error is returned when
// ctx runs out.
func retry(ctx context.Context, fn func(attempt int) (again bool, err error)) error {
	for attempt := 1; ; attempt++ {
		again, err := fn(attempt)
		if !again {
			return err
		}
		t := time.NewTimer(ClampBackoff(dialBackoff, dialBackoffMax, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

// ClampBackoff is base·2^(attempt-1), capped at limit.
func ClampBackoff(base, limit time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = dialBackoff
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

func retryableRPC(err error) bool {
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}
