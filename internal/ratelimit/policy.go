package ratelimit

import (
	"net"
	"strings"
	"time"
)

// RouteClass partitions requests into independently limited buckets.
type RouteClass string

const (
	ClassLogin    RouteClass = "login"
	ClassUpload   RouteClass = "upload"
	ClassReadOnly RouteClass = "readonly"
	ClassGeneral  RouteClass = "general"
)

// ClassifyRoute maps method and path to a RouteClass. Pure function of its
// inputs so the selection is unit-testable without any I/O.
func ClassifyRoute(method, path string) RouteClass {
	p := strings.ToLower(path)
	switch {
	case strings.HasPrefix(p, "/v1/auth/login"), strings.HasPrefix(p, "/v1/auth/register"):
		return ClassLogin
	case strings.HasPrefix(p, "/v1/uploads"):
		return ClassUpload
	}
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return ClassReadOnly
	}
	return ClassGeneral
}

// Rule is a (limit, window) pair for one bucket.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Caller describes the requester for policy resolution. Subject is empty for
// anonymous traffic; Roles come from verified claims only.
type Caller struct {
	Subject string
	Roles   []string
	IP      string
}

// Tiers holds the operator-configured admission ceilings.
type Tiers struct {
	// General applies per caller to mutating non-upload traffic.
	General Rule
	// ReadOnly applies per caller to GET/HEAD traffic.
	ReadOnly Rule
	// Login applies per submitted identity to the login/register routes.
	Login Rule
	// Upload applies per caller on its own clock, independent of General.
	Upload Rule
	// AdminMultiplier scales General/ReadOnly ceilings for admin callers.
	AdminMultiplier int
	// PremiumMultiplier scales General/ReadOnly ceilings for premium callers.
	PremiumMultiplier int
	// TrustedCIDRs lists source networks whose login traffic bypasses
	// throttling entirely (operator allow-list).
	TrustedCIDRs []*net.IPNet
}

// DefaultTiers mirrors the historical ceilings.
func DefaultTiers() Tiers {
	return Tiers{
		General:           Rule{Limit: 100, Window: 15 * time.Minute},
		ReadOnly:          Rule{Limit: 300, Window: 15 * time.Minute},
		Login:             Rule{Limit: 5, Window: 15 * time.Minute},
		Upload:            Rule{Limit: 20, Window: time.Hour},
		AdminMultiplier:   5,
		PremiumMultiplier: 2,
	}
}

// ParseCIDRs parses a list of CIDR strings, skipping blanks. Invalid entries
// are reported so misconfigured allow-lists fail at startup, not silently.
func ParseCIDRs(cidrs []string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, c := range cidrs {
		v := strings.TrimSpace(c)
		if v == "" {
			continue
		}
		_, network, err := net.ParseCIDR(v)
		if err != nil {
			return nil, err
		}
		out = append(out, network)
	}
	return out, nil
}

// Resolution is the chosen bucket for one request: the counter key and its
// rule, or Bypass when no limiting applies.
type Resolution struct {
	Key    string
	Rule   Rule
	Bypass bool
}

// Resolve picks the bucket for a request. The key is a composite of route
// class and caller identity: authenticated subject when present, client IP
// otherwise. Login-class traffic from a trusted CIDR bypasses entirely.
func (t Tiers) Resolve(class RouteClass, caller Caller) Resolution {
	who := "ip:" + caller.IP
	if caller.Subject != "" {
		who = "sub:" + caller.Subject
	}

	switch class {
	case ClassLogin:
		if t.trusted(caller.IP) {
			return Resolution{Bypass: true}
		}
		return Resolution{Key: string(ClassLogin) + ":" + who, Rule: t.Login}
	case ClassUpload:
		return Resolution{Key: string(ClassUpload) + ":" + who, Rule: t.Upload}
	case ClassReadOnly:
		return Resolution{Key: string(ClassReadOnly) + ":" + who, Rule: t.scaled(t.ReadOnly, caller.Roles)}
	default:
		return Resolution{Key: string(ClassGeneral) + ":" + who, Rule: t.scaled(t.General, caller.Roles)}
	}
}

func (t Tiers) scaled(r Rule, roles []string) Rule {
	mult := 1
	for _, role := range roles {
		switch role {
		case "admin":
			if t.AdminMultiplier > mult {
				mult = t.AdminMultiplier
			}
		case "premium":
			if t.PremiumMultiplier > mult {
				mult = t.PremiumMultiplier
			}
		}
	}
	r.Limit *= mult
	return r
}

func (t Tiers) trusted(ipStr string) bool {
	if len(t.TrustedCIDRs) == 0 {
		return false
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range t.TrustedCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
