// Command turbo_scan fires concurrent single-unit sales at the terminal API and
// checks that no SKU is ever sold past its stock.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/jersey-pos/internal/adapter/handler"
)

type tally struct {
	before  int
	sold    atomic.Int32
	soldOut atomic.Int32
	failed  atomic.Int32
}

func main() {
	addr := flag.String("addr", "localhost:50051", "terminal gRPC address")
	skus := flag.String("sku", "", "comma separated SKUs to scan")
	perSKU := flag.Int("n", 50, "concurrent scans per SKU")
	flag.Parse()

	targets := splitSKUs(*skus)
	if len(targets) == 0 {
		log.Fatal("-sku is required")
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to dial %s: %v", *addr, err)
	}
	defer conn.Close()
	client := handler.NewTerminalClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stock := snapshotStock(ctx, client)
	tallies := make(map[string]*tally, len(targets))
	for _, code := range targets {
		qty, ok := stock[code]
		if !ok {
			log.Fatalf("sku %s not found in snapshot", code)
		}
		tallies[code] = &tally{before: qty}
	}

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *perSKU; i++ {
		for _, code := range targets {
			wg.Add(1)
			go func(code string, t *tally) {
				defer wg.Done()
				scan(ctx, client, code, t)
			}(code, tallies[code])
		}
	}
	wg.Wait()
	elapsed := time.Since(start)

	after := snapshotStock(ctx, client)
	pass := true

	fmt.Println("========== TURBO SCAN RESULTS ==========")
	fmt.Printf("Scans per SKU:    %d\n", *perSKU)
	fmt.Printf("Duration:         %v\n", elapsed)
	for _, code := range targets {
		t := tallies[code]
		want := min(t.before, *perSKU)
		ok := t.failed.Load() == 0 && int(t.sold.Load()) == want && after[code] == t.before-want
		pass = pass && ok
		fmt.Printf("%-10s before=%d sold=%d sold_out=%d errors=%d after=%d ok=%v\n",
			code, t.before, t.sold.Load(), t.soldOut.Load(), t.failed.Load(), after[code], ok)
	}
	fmt.Println("=========================================")

	if pass {
		fmt.Println("PASS: every SKU sold exactly its available stock")
	} else {
		fmt.Println("FAIL: see per-SKU lines above")
	}
}

func scan(ctx context.Context, client *handler.TerminalClient, code string, t *tally) {
	_, err := client.ProcessSale(ctx, &handler.ProcessSaleRequest{
		RequestID: uuid.NewString(),
		SKU:       code,
		Quantity:  1,
	})
	switch status.Code(err) {
	case codes.OK:
		t.sold.Add(1)
	case codes.FailedPrecondition:
		t.soldOut.Add(1)
	default:
		t.failed.Add(1)
		log.Printf("scan %s failed: %v", code, err)
	}
}

func snapshotStock(ctx context.Context, client *handler.TerminalClient) map[string]int {
	snap, err := client.Snapshot(ctx, &handler.SnapshotRequest{})
	if err != nil {
		log.Fatalf("snapshot failed: %v", err)
	}
	out := make(map[string]int, len(snap.Variants))
	for _, v := range snap.Variants {
		out[v.SKU] = v.StockQuantity
	}
	return out
}

func splitSKUs(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
