// Command enrnode boots one ENR participant: it loads configuration, wires
// the core subsystems together, joins the gossip transport, and runs the
// bridge's periodic broadcasters until interrupted.
package main

import (
	"context"
	"crypto/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"enr-network/core"
	"enr-network/internal/bridge"
	"enr-network/pkg/config"
)

func main() {
	log := logrus.WithField("cmd", "enrnode")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logrus.SetLevel(lvl)
	}
	if rendered, err := yaml.Marshal(cfg); err == nil {
		log.Debugf("effective configuration:\n%s", rendered)
	}

	self, err := randomNodeId()
	if err != nil {
		log.WithError(err).Fatal("generate node id")
	}
	log = log.WithField("node", self.String())

	pool := core.NewRevivalPool()
	ledger := core.NewLedger(pool)

	bridgeCfg := bridge.EnrBridgeConfig{
		GradientInterval:    core.Seconds(cfg.Intervals.GradientSeconds),
		ElectionInterval:    core.Seconds(cfg.Intervals.ElectionSeconds),
		CreditSyncInterval:  core.Seconds(cfg.Intervals.CreditSyncSeconds),
		HealthCheckInterval: core.Millis(core.HealthCheckIntervalMs),
		MaxMessageAge:       core.Seconds(cfg.Intervals.MaxMessageAgeSeconds),
		SeptalGateConfig: core.SeptalGateConfig{
			TimeoutWeight:       cfg.SeptalGate.TimeoutWeight,
			CreditDefaultWeight: cfg.SeptalGate.CreditWeight,
			ReputationWeight:    cfg.SeptalGate.ReputationWeight,
		},
		EntropyWeights: core.EntropyWeights{
			Network:  cfg.EntropyWeights.Network,
			Compute:  cfg.EntropyWeights.Compute,
			Storage:  cfg.EntropyWeights.Storage,
			Temporal: cfg.EntropyWeights.Temporal,
		},
		RequireSignatures: cfg.Security.RequireSignatures,
	}

	transport, err := bridge.NewLibP2PTransport(cfg.Node.ListenAddr)
	if err != nil {
		log.WithError(err).Fatal("start transport")
	}

	topoMgr := core.NewTopologyManager()
	gates := core.NewGateRegistry()
	woronin := core.NewWoroninManager()
	decomposer := core.NewDecomposer()

	b := bridge.NewBridge(
		bridge.NodeSelf{Id: self, Region: cfg.Node.Region},
		bridgeCfg,
		transport,
		ledger,
		pool,
		topoMgr,
		nil, // elector: wired once a NodeMetrics implementation is supplied by the embedder
		gates,
		woronin,
		core.NewHealingManager(noopHealthChecker{}, core.Seconds(10)),
		decomposer,
		nil, // signature verification delegated to the embedder; unenforced by default
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		log.WithError(err).Fatal("start bridge")
	}
	log.Info("enr node running")

	<-ctx.Done()
	log.Info("shutting down")
	if err := b.Stop(); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
}

func randomNodeId() (core.NodeId, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return core.NodeId{}, err
	}
	return core.NodeIdFromBytes(b), nil
}

// noopHealthChecker reports every peer healthy; real deployments supply a
// HealthChecker backed by an actual probe.
type noopHealthChecker struct{}

func (noopHealthChecker) CheckHealth(node core.NodeId) core.HealthStatus {
	return core.HealthStatus{IsHealthy: true, LastCheck: core.Now()}
}
