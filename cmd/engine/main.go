package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gptprojectmanager/utxoracle-go/internal/analyzer"
	"github.com/gptprojectmanager/utxoracle-go/internal/api"
	"github.com/gptprojectmanager/utxoracle-go/internal/baseline"
	"github.com/gptprojectmanager/utxoracle-go/internal/config"
	"github.com/gptprojectmanager/utxoracle-go/internal/mempool"
	"github.com/gptprojectmanager/utxoracle-go/internal/orchestrator"
	"github.com/gptprojectmanager/utxoracle-go/internal/rpcclient"
	"github.com/gptprojectmanager/utxoracle-go/internal/store"
)

func main() {
	log.Println("starting on-chain price inference engine")

	cfg := config.MustLoad()

	var st *store.Store
	if cfg.DatabaseURL != "" {
		s, err := store.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Printf("warning: failed to connect to PostgreSQL, continuing without persistence: %v", err)
		} else {
			st = s
			defer st.Close()
			if err := st.InitSchema(context.Background()); err != nil {
				log.Printf("warning: schema init failed: %v", err)
			}
		}
	}

	rpc, err := rpcclient.New(rpcclient.Config{
		Host: cfg.BTCRPCHost,
		User: cfg.BTCRPCUser,
		Pass: cfg.BTCRPCPass,
	})
	if err != nil {
		log.Fatalf("FATAL: failed to connect to Bitcoin RPC: %v", err)
	}
	defer rpc.Shutdown()

	an := analyzer.New(cfg.RollingWindowSeconds)

	log.Printf("bootstrapping baseline from the last %d blocks", cfg.BaselineWindowBlocks)
	calc, err := baseline.Bootstrap(rpc, cfg.BaselineWindowBlocks)
	if err != nil {
		log.Fatalf("FATAL: baseline bootstrap failed: %v", err)
	}
	if b := calc.Current(); b != nil {
		an.SetBaseline(b.Price)
		log.Printf("baseline ready: $%.2f (confidence %.2f, %d blocks)", b.Price, b.Confidence, cfg.BaselineWindowBlocks)
	} else {
		log.Println("warning: baseline unavailable at startup (insufficient blocks ingested)")
	}

	listener := mempool.New(map[string]string{
		"rawtx":    cfg.ZMQRawTxEndpoint,
		"rawblock": cfg.ZMQRawBlockEndpoint,
	})

	var auth *api.Authenticator
	if cfg.APIAuthToken != "" {
		auth = api.NewAuthenticator()
		auth.Issue(cfg.APIAuthToken, 365*24*time.Hour)
	}
	budget := api.NewConnectionBudget(cfg.ConnectionAttemptsPerMin)
	hub := api.NewHub(auth, budget, st)

	orchCfg := orchestrator.Config{
		GCInterval:        time.Duration(cfg.GCIntervalSeconds * float64(time.Second)),
		BroadcastInterval: time.Duration(cfg.BroadcastIntervalSeconds * float64(time.Second)),
	}
	orch := orchestrator.New(orchCfg, rpc, listener, an, calc, hub, st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go orch.Run(ctx)

	router := api.SetupRouter(api.Deps{
		Hub:      hub,
		Analyzer: an,
		Baseline: calc,
		Auth:     auth,
		Budget:   budget,
		Store:    st,
	})

	log.Printf("engine listening on :%s", cfg.Port)
	go func() {
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatalf("FATAL: server exited: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
}
