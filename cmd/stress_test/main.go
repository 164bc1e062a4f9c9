package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/rl1809/invsnap/internal/adapter/handler"
)

type stressOptions struct {
	addr          string
	marketplace   string
	totalRequests int
	timeout       time.Duration
}

func main() {
	opts := &stressOptions{}

	cmd := &cobra.Command{
		Use:          "stress_test",
		Short:        "Fire concurrent snapshot requests at a running server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "localhost:50051", "gRPC address of a running server")
	cmd.Flags().StringVar(&opts.marketplace, "marketplace", "bricklink", "marketplace to snapshot")
	cmd.Flags().IntVarP(&opts.totalRequests, "requests", "n", 20, "concurrent snapshot requests")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "per-request deadline")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts *stressOptions) error {
	conn, err := grpc.NewClient(opts.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.addr, err)
	}
	defer conn.Close()
	client := handler.NewSnapshotClient(conn)

	// Counters
	var certified atomic.Int32
	var busy atomic.Int32
	var failed atomic.Int32

	var mu sync.Mutex
	failures := make(map[codes.Code]int)

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < opts.totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
			defer cancel()

			_, err := client.FetchFullState(ctx, &handler.FetchFullStateRequest{Marketplace: opts.marketplace})
			switch status.Code(err) {
			case codes.OK:
				certified.Add(1)
			case codes.Aborted:
				busy.Add(1)
			default:
				failed.Add(1)
				mu.Lock()
				failures[status.Code(err)]++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Marketplace:      %s\n", opts.marketplace)
	fmt.Printf("Total Requests:   %d\n", opts.totalRequests)
	fmt.Printf("Certified:        %d\n", certified.Load())
	fmt.Printf("Already running:  %d\n", busy.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	for c, n := range failures {
		fmt.Printf("  %-15s %d\n", c.String()+":", n)
	}
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if err := checkExclusive(opts.totalRequests, certified.Load()+failed.Load(), busy.Load()); err != nil {
		fmt.Println("FAIL")
		return err
	}
	fmt.Println("PASS: Exactly one snapshot ran, the rest were turned away")
	return nil
}

// checkExclusive verifies that of total simultaneous requests the sync lock
// let exactly one run and turned the rest away.
func checkExclusive(total int, ran, rejected int32) error {
	if ran != 1 || rejected != int32(total-1) {
		return fmt.Errorf("expected 1 snapshot and %d rejections, got %d/%d", total-1, ran, rejected)
	}
	return nil
}
