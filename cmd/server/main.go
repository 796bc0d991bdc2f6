package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"scenic-route-planner/internal/routing"
	"scenic-route-planner/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	solver, err := solverOptions()
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:         getEnv("SERVER_ADDR", "127.0.0.1:8080"),
		Store:        getEnv("STORE", server.StoreSQLite),
		DBPath:       getEnv("DB_PATH", ""),
		OSRMURL:      getEnv("OSRM_URL", ""),
		OSRMProfile:  getEnv("OSRM_PROFILE", ""),
		NominatimURL: getEnv("NOMINATIM_URL", ""),
		Solver:       solver,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Printf("Scenic route planner listening on http://%s", actualAddr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	log.Printf("Received signal %v, starting graceful shutdown", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// solverOptions reads SOLVER_* overrides on top of the defaults
func solverOptions() (routing.Options, error) {
	opts := routing.DefaultOptions()
	var err error

	if opts.Trials, err = getEnvInt("SOLVER_TRIALS", opts.Trials); err != nil {
		return opts, err
	}
	if opts.LengthParam, err = getEnvInt("SOLVER_LENGTH", opts.LengthParam); err != nil {
		return opts, err
	}
	if opts.Workers, err = getEnvInt("SOLVER_WORKERS", opts.Workers); err != nil {
		return opts, err
	}
	if v := os.Getenv("SOLVER_POWER"); v != "" {
		if opts.PowerParam, err = strconv.ParseFloat(v, 64); err != nil {
			return opts, fmt.Errorf("invalid SOLVER_POWER %q: %w", v, err)
		}
	}
	if v := os.Getenv("SOLVER_SEED"); v != "" {
		if opts.Seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return opts, fmt.Errorf("invalid SOLVER_SEED %q: %w", v, err)
		}
	}
	return opts, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}
