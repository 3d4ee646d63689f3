package convert

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

var testInputs = [][]string{
	{"k", "ky", "kyo", "kyou", "kyoui", "kyouik", "kyouiku"},
	{"s", "se", "sei", "seid", "seido"},
	{"t", "te", "tem", "temp", "tempu"},
}

func settleGoroutines(baseline int) int {
	deadline := time.Now().Add(2 * time.Second)
	for {
		runtime.GC()
		n := runtime.NumGoroutine()
		if n <= baseline+2 || time.Now().After(deadline) {
			return n
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNoGoroutineLeakUnderSupersession(t *testing.T) {
	prev := log.GetLevel()
	log.SetLevel(log.ErrorLevel)
	defer log.SetLevel(prev)

	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 200},
		{workers: 4, iterationsPerWorker: 50},
	}

	for _, config := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", config.workers, config.iterationsPerWorker), func(t *testing.T) {
			e := newTestEngine(t)
			if err := e.Preload(context.Background()); err != nil {
				t.Fatalf("preload failed: %v", err)
			}

			var baseline runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&baseline)
			baselineGoroutines := runtime.NumGoroutine()

			var wg sync.WaitGroup
			for w := 0; w < config.workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s := e.NewSession()
					defer s.Close()
					for i := 0; i < config.iterationsPerWorker; i++ {
						for _, steps := range testInputs {
							var last *Pending
							for _, text := range steps {
								_ = s.StopComposition()
								_ = s.Insert(text)
								p, err := s.Start(context.Background(), Request{})
								if err != nil {
									t.Errorf("start failed: %v", err)
									return
								}
								last = p
							}
							if _, err := last.Wait(context.Background()); err != nil {
								t.Errorf("final request failed: %v", err)
								return
							}
						}
					}
				}()
			}
			wg.Wait()

			finalGoroutines := settleGoroutines(baselineGoroutines)
			var final runtime.MemStats
			runtime.ReadMemStats(&final)

			t.Logf("workers=%d mem_delta=%d bytes goroutine_delta=%d",
				config.workers, int64(final.Alloc)-int64(baseline.Alloc), finalGoroutines-baselineGoroutines)

			if finalGoroutines-baselineGoroutines > 2 {
				t.Errorf("goroutine leak detected: %d goroutines leaked", finalGoroutines-baselineGoroutines)
			}
		})
	}
}
