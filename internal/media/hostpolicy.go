package media

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ImageHostTag is the validator tag that enforces a HostPolicy.
const ImageHostTag = "imghost"

// HostPolicy is the allow-list of remote image origins.
type HostPolicy struct {
	hosts map[string]struct{}
}

func NewHostPolicy(hosts []string) *HostPolicy {
	p := &HostPolicy{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		p.hosts[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return p
}

// Allowed reports whether rawURL is an https or http URL on an allowed host.
func (p *HostPolicy) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	_, ok := p.hosts[strings.ToLower(u.Hostname())]
	return ok
}

// Register installs the imghost tag on v. Empty values pass; combine with
// required when the field is mandatory.
func (p *HostPolicy) Register(v *validator.Validate) error {
	return v.RegisterValidation(ImageHostTag, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || p.Allowed(s)
	})
}
