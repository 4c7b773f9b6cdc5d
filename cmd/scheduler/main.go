package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sorvik/scheduler/internal/config"
	"github.com/sorvik/scheduler/internal/events"
	"github.com/sorvik/scheduler/internal/runner"
	"github.com/sorvik/scheduler/internal/scheduler"
	"github.com/sorvik/scheduler/internal/tui"
)

func main() {
	workloadPath := flag.String("workload", "", "path to a JSON workload file to submit on startup")
	headless := flag.Bool("headless", false, "run without the TUI and print results to stdout")
	flag.Parse()

	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Determine config paths for the context pane's save targets
	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
		os.Exit(1)
	}
	globalPath := filepath.Join(homeDir, ".scheduler", "config.json")
	projectPath := filepath.Join(".scheduler", "config.json")

	// Create event bus
	bus := events.NewBus()
	defer bus.Close()

	// Build the scheduler engine from config
	engine := scheduler.NewEngine()
	weights, err := cfg.PriorityWeights()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in weights config: %v\n", err)
		os.Exit(1)
	}
	if err := engine.SetPriorityWeights(weights); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying weights: %v\n", err)
		os.Exit(1)
	}

	r := runner.New(runner.ConfigFrom(cfg), engine, bus)
	registerBuiltinHandlers(r)

	// Seed the initial scheduling context
	initial := cfg.SchedulingContext()
	r.UpdateContext(scheduler.ContextPatch{
		Urgency:         &initial.Urgency,
		Importance:      &initial.Importance,
		UserExpectation: &initial.UserExpectation,
		SystemLoad:      &initial.SystemLoad,
	})

	// Submit the workload, if given
	if *workloadPath != "" {
		tasks, err := config.LoadWorkload(*workloadPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading workload: %v\n", err)
			os.Exit(1)
		}
		for _, task := range tasks {
			if _, err := r.Submit(task); err != nil {
				fmt.Fprintf(os.Stderr, "Error submitting task %q: %v\n", task.Name, err)
				os.Exit(1)
			}
		}
	}

	if *headless {
		runHeadless(ctx, r)
		return
	}

	// Create TUI model wired to the live scheduler
	model := tui.New(bus, cfg, r.UpdateContext, globalPath, projectPath)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	// Drain the queue in the background; the TUI renders the published events
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("runner: %v", err)
		}
	}()

	// Handle shutdown
	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q' or TUI finished)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		// Signal received (Ctrl+C or SIGTERM)
		// Call stop() to restore default signal handling (double Ctrl+C = force exit)
		stop()

		log.Println("Shutdown signal received, cleaning up...")
		p.Quit()

		// Wait for TUI to exit with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
}

// runHeadless drains the queue without a TUI and prints each result.
func runHeadless(ctx context.Context, r *runner.Runner) {
	results, err := r.Run(ctx)
	for _, res := range results {
		if res.Success {
			fmt.Printf("ok   %-20s %v\n", res.TaskID, res.Duration.Round(time.Millisecond))
		} else {
			fmt.Printf("FAIL %-20s %v\n", res.TaskID, res.Err)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "runner: %v\n", err)
		os.Exit(1)
	}
}

// registerBuiltinHandlers installs the stock handlers so workload files work
// out of the box. "sleep" waits for the task's estimated duration, "echo"
// returns its payload unchanged.
func registerBuiltinHandlers(r *runner.Runner) {
	r.Register("sleep", runner.HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		d := task.EstimatedDuration
		if d <= 0 {
			d = 100 * time.Millisecond
		}
		select {
		case <-time.After(d):
			return task.Name, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	r.Register("echo", runner.HandlerFunc(func(ctx context.Context, task *scheduler.Task) (any, error) {
		return task.Payload, nil
	}))
}
