package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// SigningMode controls request signing.
type SigningMode int

const (
	// SigningAuto signs requests to hosts that look like a managed
	// packaging origin and leaves every other request untouched.
	SigningAuto SigningMode = iota
	SigningOff
	SigningOn
)

// ParseSigningMode parses "auto", "on" or "off".
func ParseSigningMode(s string) (SigningMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return SigningAuto, nil
	case "on":
		return SigningOn, nil
	case "off":
		return SigningOff, nil
	default:
		return SigningAuto, fmt.Errorf("unknown signing mode %q", s)
	}
}

const (
	signingService = "mediapackagev2"

	// hex(sha256("")), every request is a bodiless GET.
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

// SigningConfig configures SigV4 signing.
type SigningConfig struct {
	Mode SigningMode
	// Region is required with SigningOn, and ignored otherwise.
	Region string
	// Credentials overrides the default AWS credential chain.
	Credentials aws.CredentialsProvider
}

type hostSigning struct {
	sign   bool
	region string
}

// signer decides per host whether to sign and holds the credentials.
// Decisions are cached on the instance; recomputing one is harmless.
type signer struct {
	cfg   SigningConfig
	hosts sync.Map // host -> hostSigning
	v4    *v4.Signer
	now   func() time.Time

	credsOnce sync.Once
	creds     aws.CredentialsProvider
	credsErr  error
}

func newSigner(cfg SigningConfig) *signer {
	return &signer{
		cfg:   cfg,
		v4:    v4.NewSigner(),
		now:   time.Now,
		creds: cfg.Credentials,
	}
}

// DetectSigningRegion reports whether host is a managed packaging egress
// endpoint (<prefix>.mediapackagev2.<region>.amazonaws.com) and returns the
// region embedded in it.
func DetectSigningRegion(host string) (string, bool) {
	labels := strings.Split(strings.ToLower(strings.TrimSuffix(host, ".")), ".")
	n := len(labels)
	if n < 5 {
		return "", false
	}
	if labels[n-1] != "com" || labels[n-2] != "amazonaws" || labels[n-4] != signingService {
		return "", false
	}
	region := labels[n-3]
	if region == "" {
		return "", false
	}
	return region, true
}

func (s *signer) lookup(host string) hostSigning {
	if v, ok := s.hosts.Load(host); ok {
		return v.(hostSigning)
	}

	var hs hostSigning
	switch s.cfg.Mode {
	case SigningOff:
	case SigningOn:
		hs = hostSigning{sign: true, region: s.cfg.Region}
		if region, ok := DetectSigningRegion(host); ok && hs.region == "" {
			hs.region = region
		}
	default:
		hs.region, hs.sign = DetectSigningRegion(host)
	}

	v, _ := s.hosts.LoadOrStore(host, hs)
	return v.(hostSigning)
}

func (s *signer) credentials(ctx context.Context) (aws.CredentialsProvider, error) {
	s.credsOnce.Do(func() {
		if s.creds != nil {
			return
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			s.credsErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		s.creds = cfg.Credentials
	})
	return s.creds, s.credsErr
}

// sign signs req in place when its host requires it. It returns whether
// the request was signed.
func (s *signer) sign(ctx context.Context, req *http.Request) (bool, error) {
	hs := s.lookup(req.URL.Hostname())
	if !hs.sign {
		return false, nil
	}
	if hs.region == "" {
		return false, fmt.Errorf("no signing region for host %s", req.URL.Hostname())
	}

	provider, err := s.credentials(ctx)
	if err != nil {
		return false, err
	}
	if provider == nil {
		return false, fmt.Errorf("no aws credentials available")
	}
	creds, err := provider.Retrieve(ctx)
	if err != nil {
		return false, fmt.Errorf("retrieve aws credentials: %w", err)
	}

	req.Header.Set("X-Amz-Content-Sha256", emptyPayloadHash)
	if err := s.v4.SignHTTP(ctx, creds, req, emptyPayloadHash, signingService, hs.region, s.now()); err != nil {
		return false, fmt.Errorf("sign request: %w", err)
	}
	return true, nil
}
