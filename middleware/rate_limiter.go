package middleware

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/releafnow/backend/utils"
)

// In-memory fixed-window rate limiting with trusted-proxy support and
// periodic cleanup. State is per-process; swap for Redis if the API ever runs
// on more than one instance.

type timestamps []int64 // unix nanos

func nowUnix() int64 { return time.Now().UnixNano() }

func getEnvDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return time.Duration(v) * time.Second
		}
	}
	return def
}

// clientIPGeneric returns the client IP string. If trustedCIDR is provided,
// X-Forwarded-For / X-Real-IP headers are honored when remote addr is inside
// one of the trusted CIDRs or IPs.
func clientIPGeneric(r *http.Request, trustedCIDR []string) string {
	remoteHost, _, _ := net.SplitHostPort(r.RemoteAddr)
	remoteIP := net.ParseIP(remoteHost)
	trusted := false
	for _, cidr := range trustedCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if strings.Contains(cidr, "/") {
			if _, ipnet, err := net.ParseCIDR(cidr); err == nil {
				if remoteIP != nil && ipnet.Contains(remoteIP) {
					trusted = true
					break
				}
			}
			continue
		}
		if ip := net.ParseIP(cidr); ip != nil && remoteIP != nil && ip.Equal(remoteIP) {
			trusted = true
			break
		}
	}
	if trusted {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				return strings.TrimSpace(parts[0])
			}
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return strings.TrimSpace(xr)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IPRateLimiter implements per-IP fixed-window counters.
type IPRateLimiter struct {
	window      time.Duration
	max         int
	mu          sync.Mutex
	state       map[string]timestamps
	cleanupTick time.Duration
	trustedCIDR []string
}

func NewIPRateLimiter(maxReq int, window time.Duration) *IPRateLimiter {
	l := &IPRateLimiter{
		window:      window,
		max:         maxReq,
		state:       make(map[string]timestamps),
		cleanupTick: getEnvDuration("RATE_CLEANUP_SECONDS", 60*time.Second),
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		l.trustedCIDR = strings.Split(v, ",")
	}
	go l.cleanupLoop()
	return l
}

func (l *IPRateLimiter) cleanupLoop() {
	for range time.Tick(l.cleanupTick) {
		cutoff := nowUnix() - l.window.Nanoseconds()
		l.mu.Lock()
		for k, ts := range l.state {
			kept := pruneBefore(ts, cutoff)
			if len(kept) == 0 {
				delete(l.state, k)
			} else {
				l.state[k] = kept
			}
		}
		l.mu.Unlock()
	}
}

// allow records one hit for key and reports whether it stays under max.
func (l *IPRateLimiter) allow(key string) (bool, int) {
	cutoff := nowUnix() - l.window.Nanoseconds()
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := pruneBefore(l.state[key], cutoff)
	if len(kept) >= l.max {
		l.state[key] = kept
		return false, 0
	}
	kept = append(kept, nowUnix())
	l.state[key] = kept
	return true, l.max - len(kept)
}

// Middleware applies per-IP limits and sets rate-limit headers.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, l.trustedCIDR)
		ok, remaining := l.allow(ip)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
			utils.WriteJSON(w, http.StatusTooManyRequests, utils.APIResponse{
				Success: false,
				Message: "Too many requests, please try again later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserRateLimiter limits authenticated traffic per user id with separate read
// and write budgets. Requests without a user in context fall back to the IP.
type UserRateLimiter struct {
	window      time.Duration
	maxRead     int
	maxWrite    int
	mu          sync.Mutex
	state       map[string]timestamps
	trustedCIDR []string
}

func NewUserRateLimiter(maxRead, maxWrite, windowSeconds int) *UserRateLimiter {
	l := &UserRateLimiter{
		window:   time.Duration(windowSeconds) * time.Second,
		maxRead:  maxRead,
		maxWrite: maxWrite,
		state:    make(map[string]timestamps),
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		l.trustedCIDR = strings.Split(v, ",")
	}
	go func() {
		for range time.Tick(getEnvDuration("RATE_CLEANUP_SECONDS", 60*time.Second)) {
			cutoff := nowUnix() - l.window.Nanoseconds()
			l.mu.Lock()
			for k, ts := range l.state {
				kept := pruneBefore(ts, cutoff)
				if len(kept) == 0 {
					delete(l.state, k)
				} else {
					l.state[k] = kept
				}
			}
			l.mu.Unlock()
		}
	}()
	return l
}

func (l *UserRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		max := l.maxRead
		kind := "r"
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			max = l.maxWrite
			kind = "w"
		}

		key := ""
		if uid, ok := utils.GetUserID(r); ok && uid != 0 {
			key = fmt.Sprintf("u:%d:%s", uid, kind)
		} else {
			key = "ip:" + clientIPGeneric(r, l.trustedCIDR) + ":" + kind
		}

		cutoff := nowUnix() - l.window.Nanoseconds()
		l.mu.Lock()
		kept := pruneBefore(l.state[key], cutoff)
		over := len(kept) >= max
		if !over {
			kept = append(kept, nowUnix())
		}
		l.state[key] = kept
		l.mu.Unlock()

		if over {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
			utils.WriteJSON(w, http.StatusTooManyRequests, utils.APIResponse{
				Success: false,
				Message: "Too many requests, please try again later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// pruneBefore drops timestamps older than cutoff, preserving order.
func pruneBefore(ts timestamps, cutoff int64) timestamps {
	i := 0
	for ; i < len(ts); i++ {
		if ts[i] >= cutoff {
			break
		}
	}
	if i == 0 {
		return ts
	}
	return append(timestamps(nil), ts[i:]...)
}
