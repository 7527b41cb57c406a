package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	pawtrail "github.com/pawtrail/pawtrail"
	"github.com/pawtrail/pawtrail/credentials"
	"github.com/pawtrail/pawtrail/token"
)

const signingKey = "smoke-signing-key"

// authBackend is the in-process server the smoke run hammers: a refresh
// endpoint minting short-lived access tokens plus a protected endpoint
// answering 401 to expired ones.
type authBackend struct {
	tokenTTL time.Duration

	refreshes atomic.Int64
	rejects   atomic.Int64
}

func (a *authBackend) mintAccess() string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(a.tokenTTL).Unix(),
	})
	signed, err := tok.SignedString([]byte(signingKey))
	if err != nil {
		panic(fmt.Sprintf("sign access token: %v", err))
	}
	return signed
}

func (a *authBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Refresh-Token") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	a.refreshes.Add(1)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"accessToken":  a.mintAccess(),
		"refreshToken": fmt.Sprintf("rt-%d", a.refreshes.Load()),
	})
}

func (a *authBackend) handleWalks(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !token.Valid(auth[len(prefix):], time.Now()) {
		a.rejects.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"walks": []string{"morning", "evening"}})
}

func main() {
	var (
		workers   = flag.Int("workers", 64, "number of concurrent request workers")
		ops       = flag.Int("ops", 5000, "total requests to issue")
		tokenTTL  = flag.Duration("token-ttl", 750*time.Millisecond, "access token lifetime; short values force refresh storms")
		redisAddr = flag.String("redis-addr", "", "redis address for the credential store; if empty, REDIS_ADDR env or miniredis is used")
		envFile   = flag.String("env-file", ".env", "dotenv file loaded before reading PAWTRAIL_* variables")
	)
	flag.Parse()

	if *workers <= 0 || *ops <= 0 || *tokenTTL <= 0 {
		fmt.Fprintln(os.Stderr, "workers, ops, and token-ttl must be > 0")
		os.Exit(2)
	}

	_ = godotenv.Load(*envFile)

	ctx := context.Background()

	backend := &authBackend{tokenTTL: *tokenTTL}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", backend.handleRefresh)
	mux.HandleFunc("/v1/walks", backend.handleWalks)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg, err := pawtrail.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.Refresh.URL = srv.URL + "/auth/refresh"
	// The default leeway would dwarf the short smoke tokens and turn every
	// request into a pre-flight refresh.
	cfg.Refresh.ExpiryLeeway = *tokenTTL / 4

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := credentials.NewRedisStore(client, "pt:smoke")
	if err := store.Set(ctx, credentials.Credential{
		AccessToken:  backend.mintAccess(),
		RefreshToken: "rt-seed",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "seed credential: %v\n", err)
		os.Exit(1)
	}

	session, err := pawtrail.New().
		WithConfig(cfg).
		WithStore(store).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build session: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	invalidated := session.SubscribeInvalidation()

	fmt.Printf("hammering %s with %d workers, %d ops, token ttl %s\n",
		srv.URL, *workers, *ops, *tokenTTL)

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, *ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= *ops {
					return
				}
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/walks", nil)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				t0 := time.Now()
				resp, err := session.Do(req)
				d := time.Since(t0)
				if err != nil || resp.StatusCode != http.StatusOK {
					atomic.AddInt64(&failures, 1)
				}
				if resp != nil {
					_ = resp.Body.Close()
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)

	select {
	case <-invalidated:
		fmt.Println("WARNING: session was invalidated during the run")
	default:
	}

	printStats(total, latencies, failures)

	snap := session.MetricsSnapshot()
	fmt.Println("---- session counters ----")
	fmt.Printf("requests            %d\n", snap.Counters[pawtrail.MetricRequest])
	fmt.Printf("preflight refreshes %d\n", snap.Counters[pawtrail.MetricPreflightRefresh])
	fmt.Printf("reactive refreshes  %d\n", snap.Counters[pawtrail.MetricReactiveRefresh])
	fmt.Printf("refresh successes   %d\n", snap.Counters[pawtrail.MetricRefreshSuccess])
	fmt.Printf("refresh coalesced   %d\n", snap.Counters[pawtrail.MetricRefreshCoalesced])
	fmt.Printf("events dropped      %d\n", session.EventsDropped())
	fmt.Printf("backend refreshes   %d (coalescing keeps this far below the counter sum)\n", backend.refreshes.Load())
	fmt.Printf("backend 401s        %d\n", backend.rejects.Load())
}

func printStats(total time.Duration, samples []time.Duration, failures int64) {
	fmt.Println("---- results ----")
	if len(samples) == 0 {
		fmt.Println("no samples")
		return
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	fmt.Printf("total    %s\n", total.Round(time.Millisecond))
	fmt.Printf("ops      %d (failures %d)\n", len(samples), failures)
	fmt.Printf("ops/s    %.0f\n", float64(len(samples))/total.Seconds())
	fmt.Printf("p50      %s\n", percentile(samples, 50))
	fmt.Printf("p95      %s\n", percentile(samples, 95))
	fmt.Printf("p99      %s\n", percentile(samples, 99))
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}
