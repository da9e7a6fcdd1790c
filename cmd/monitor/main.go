// Command monitor keeps a live copy of the variant list the way a shop-floor
// screen does: subscribe, take a snapshot, then fold in events as they arrive.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rl1809/jersey-pos/internal/adapter/handler"
	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/core/reconcile"
	"github.com/rl1809/jersey-pos/internal/logger"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "terminal gRPC address")
	jerseyID := flag.Uint("jersey", 0, "jersey to watch, 0 for all")
	flag.Parse()

	if _, err := logger.Init(logger.Options{Level: "info", Format: "console"}); err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watch(ctx, *addr, *jerseyID); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorw("monitor_stopped", "error", err)
		os.Exit(1)
	}
}

func watch(ctx context.Context, addr string, jerseyID uint) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()
	client := handler.NewTerminalClient(conn)

	stream, err := client.Subscribe(ctx, &handler.SubscribeRequest{
		Topics: []domain.Topic{domain.TopicStock, domain.TopicVariant, domain.TopicJersey},
	})
	if err != nil {
		return err
	}

	snap, err := client.Snapshot(ctx, &handler.SnapshotRequest{JerseyID: jerseyID})
	if err != nil {
		return err
	}
	variants := reconcile.NewVariants(jerseyID)
	variants.Hydrate(snap.Variants)
	logger.Infow("snapshot_loaded", "variants", variants.Len(), "taken_at", snap.TakenAt)

	for {
		batch, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, ev := range batch.Events {
			if !variants.Apply(ev) {
				continue
			}
			if p, ok := ev.Payload.(domain.StockUpdated); ok {
				v, _ := variants.BySKU(p.SKU)
				logger.Infow("stock_changed", "sku", p.SKU, "quantity", v.StockQuantity, "version", v.StockVersion, "low", v.IsLowStock())
				continue
			}
			logger.Infow("catalog_changed", "kind", ev.Kind, "key", ev.Key, "variants", variants.Len())
		}
	}
}
