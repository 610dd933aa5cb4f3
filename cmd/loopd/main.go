// Command loopd runs the Loop Decision Engine as a standalone daemon,
// wiring the Nightscout-backed collaborator stores, a simulated pump
// transport, YAML configuration, and desktop watchdog notifications.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openloop/loopengine/internal/config"
	"github.com/openloop/loopengine/internal/device"
	"github.com/openloop/loopengine/internal/engine"
	"github.com/openloop/loopengine/internal/mathkernel"
	"github.com/openloop/loopengine/internal/notify"
	"github.com/openloop/loopengine/internal/store"
	"go.uber.org/zap"
)

func main() {
	var (
		nightscoutURL = flag.String("nightscout-url", "", "Nightscout base URL")
		apiSecret     = flag.String("api-secret", "", "Nightscout API secret")
		apiToken      = flag.String("api-token", "", "Nightscout API token")
		useToken      = flag.Bool("use-token", false, "authenticate with a token instead of the API secret")
		configPath    = flag.String("config", "loopd.yaml", "path to the YAML configuration file")
		dosingEnabled = flag.Bool("dosing-enabled", false, "enable automated dosing on startup")
		isf           = flag.Float64("isf", 50, "insulin sensitivity factor, mg/dL per unit")
		carbRatio     = flag.Float64("carb-sensitivity", 4, "mg/dL raised per gram of carbohydrate")
		pollInterval  = flag.Duration("poll-interval", time.Minute, "how often to poll Nightscout for new glucose")
	)
	flag.Parse()

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	cfg, err := config.NewProvider(*configPath)
	if err != nil {
		zapLogger.Fatal("loading configuration", zap.Error(err))
	}
	defer func() { _ = cfg.Close() }()

	nsClient := store.NewClient(*nightscoutURL, *apiSecret, *apiToken, *useToken)

	notifier := notify.NewNotifier("Loop Decision Engine")
	defer notifier.Stop()

	transport := device.NewSimulatedTransport()
	pump := device.NewPump(transport, true)

	eng := engine.New(engine.Deps{
		Glucose:    store.NewGlucoseAdapter(nsClient),
		Carbs:      store.NewCarbAdapter(nsClient, *carbRatio),
		Doses:      store.NewDoseAdapter(nsClient, *isf),
		PumpStatus: store.NewPumpStatusAdapter(nsClient),
		Device:     pump,
		Config:     cfg,
		Math:       mathkernel.Adapter{},
		Logger:     engine.NewZapLogger(zapLogger),
		Notifier:   notifier,
	})
	eng.Start()
	defer eng.Stop()

	eng.SetDosingEnabled(*dosingEnabled)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	zapLogger.Info("loopd started", zap.String("config", *configPath), zap.Duration("poll_interval", *pollInterval))

	for {
		select {
		case <-ticker.C:
			eng.RunLoop(ctx)
		case <-ctx.Done():
			zapLogger.Info("loopd shutting down")
			return
		}
	}
}
