// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"axonflow/corerouter/internal/agents/bus"
	agentregistry "axonflow/corerouter/internal/agents/registry"
	"axonflow/corerouter/internal/cache"
	"axonflow/corerouter/internal/config"
	"axonflow/corerouter/internal/core"
	"axonflow/corerouter/internal/dqn"
	"axonflow/corerouter/internal/provider"
	"axonflow/corerouter/internal/registry"
	"axonflow/corerouter/internal/telemetry/logger"
	"axonflow/corerouter/internal/telemetry/metrics"
	"axonflow/corerouter/internal/types"
)

func main() {
	log.Println("Starting AxonFlow orchestration core...")

	cfg := config.Load()
	lg := logger.New("orchestrator")

	models, err := registry.Load(cfg.ManifestPath)
	if err != nil {
		log.Fatalf("loading model manifest %s: %v", cfg.ManifestPath, err)
	}

	providers, err := provider.QuickBootstrap()
	if err != nil {
		lg.Warn("", "", "no LLM providers bootstrapped from environment; orchestrate will only route, not execute", logger.Fields{"error": err.Error()})
		providers = provider.NewRegistry()
	}

	metricsCollector := metrics.New(metrics.WithRingSize(cfg.MetricsRingSize))

	local := cache.NewLRUCache(cfg.CacheCapacity, metricsCollector)
	var routingCache cache.Cache = local
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		routingCache = cache.NewRedisCache(redisClient, local, "axonflow:route:")
	}

	agentCfg := dqn.AgentConfig{
		Epsilon0:             cfg.Epsilon0,
		EpsilonMin:           cfg.EpsilonMin,
		EpsilonDecay:         cfg.EpsilonDecay,
		Gamma:                cfg.Gamma,
		BatchSize:            cfg.BatchSize,
		TargetUpdateInterval: cfg.TargetUpdateInterval,
		LearningRate:         cfg.LearningRate,
		ReplayCapacity:       cfg.ReplayCapacity,
	}
	dqnAgent := dqn.NewAgent(models.ActionSpace(), agentCfg)
	learning := core.NewLearningAdapter(dqnAgent, models, providers)

	agents := agentregistry.New(agentregistry.DefaultScoringWeights(), cfg.AgentLatencyCeiling)
	messageBus := bus.New(bus.WithQueueCapacity(cfg.BusQueueCapacity))

	orchestrator := core.New(models, providers,
		core.WithQuantumRouting(
			[]types.RoutingStrategy{
				types.StrategyBalanced,
				types.StrategyTaskOptimized,
				types.StrategyCostEfficient,
				types.StrategyPerformanceFocused,
				types.StrategyLearningOptimized,
			},
			types.CollapseWeighted,
			learning,
		),
		core.WithCache(routingCache, cfg.CacheTTL),
		core.WithMetrics(metricsCollector),
		core.WithAgents(agents, messageBus, cfg.AgentLatencyCeiling),
	)

	r := mux.NewRouter()
	r.HandleFunc("/v1/orchestrate", orchestrateHandler(orchestrator, lg)).Methods("POST")
	r.HandleFunc("/v1/router/debug", debugRouteHandler(orchestrator, lg)).Methods("POST")
	r.HandleFunc("/healthz", healthHandler(models, providers)).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(metricsCollector.Registry(), promhttp.HandlerOpts{})).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	log.Printf("AxonFlow orchestration core listening on %s", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, c.Handler(r)))
}

func orchestrateHandler(o *core.Orchestrator, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()

		result, err := o.Orchestrate(ctx, req)
		if err != nil {
			lg.Error("", "", "orchestrate failed", logger.Fields{"error": err.Error()})
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}

func debugRouteHandler(o *core.Orchestrator, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		info, err := o.DebugRoute(r.Context(), req)
		if err != nil {
			lg.Error("", "", "debug_route failed", logger.Fields{"error": err.Error()})
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}
}

func healthHandler(models *registry.Registry, providers *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "ok",
			"models_loaded":   len(models.List()),
			"providers_known": len(providers.List()),
		})
	}
}
