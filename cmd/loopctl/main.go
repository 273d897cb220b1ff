package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"loop-route-service/internal/api/dto"
	"loop-route-service/internal/app"
	"loop-route-service/internal/config"
	"loop-route-service/internal/domain"
	"loop-route-service/internal/platform/obs"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "loopctl",
		Short: "Find walking loops and point-to-point routes from the command line",
		Long: `loopctl runs the same route finder as the HTTP server and prints the
result as a GeoJSON FeatureCollection on stdout.

Collaborator URLs and the geocode cache are read from the environment
(.env is honoured). Use --offline to run against a synthetic street grid
and an in-process router.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("offline", false, "Use a synthetic street grid and mock router")
	rootCmd.PersistentFlags().String("tuning", "", "YAML file overriding search constants")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug|info|warn|error")

	loopCmd := &cobra.Command{
		Use:   "loop",
		Short: "Find loops that start and end at one point",
		RunE:  runLoop,
	}
	loopCmd.Flags().String("start", "", "Start as lon,lat")
	loopCmd.Flags().String("address", "", "Start as a free-text place (needs PHOTON_URL)")
	loopCmd.Flags().Float64("miles", 3, "Target loop length in miles")
	loopCmd.Flags().String("polygon", "", "Optional area as lon,lat;lon,lat;... (at least 3 vertices)")
	loopCmd.Flags().Bool("stream", false, "Print each accepted route as NDJSON while searching")

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Find point-to-point alternatives",
		RunE:  runRoute,
	}
	routeCmd.Flags().String("start", "", "Start as lon,lat")
	routeCmd.Flags().String("end", "", "End as lon,lat")
	_ = routeCmd.MarkFlagRequired("start")
	_ = routeCmd.MarkFlagRequired("end")

	rootCmd.AddCommand(loopCmd, routeCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and wires the application for one command run.
func setup(cmd *cobra.Command) (*app.App, error) {
	level, _ := cmd.Flags().GetString("log-level")
	obs.SetupLogger(level, true)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	tuningPath, _ := cmd.Flags().GetString("tuning")
	if tuningPath == "" {
		tuningPath = cfg.TuningPath
	}
	tuning, err := config.LoadTuning(tuningPath)
	if err != nil {
		return nil, err
	}
	offline, _ := cmd.Flags().GetBool("offline")

	return app.New(cmd.Context(), cfg, tuning, offline)
}

func runLoop(cmd *cobra.Command, args []string) error {
	startFlag, _ := cmd.Flags().GetString("start")
	address, _ := cmd.Flags().GetString("address")
	miles, _ := cmd.Flags().GetFloat64("miles")
	polygonFlag, _ := cmd.Flags().GetString("polygon")
	stream, _ := cmd.Flags().GetBool("stream")

	if (startFlag == "") == (address == "") {
		return errors.New("exactly one of --start or --address is required")
	}

	var polygon *domain.Polygon
	if polygonFlag != "" {
		pts, err := parsePoints(polygonFlag)
		if err != nil {
			return fmt.Errorf("--polygon: %w", err)
		}
		if polygon, err = domain.NewPolygon(pts); err != nil {
			return fmt.Errorf("--polygon: %w", err)
		}
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var start orb.Point
	if startFlag != "" {
		if start, err = parsePoint(startFlag); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	} else {
		if a.Geocoder == nil {
			return errors.New("--address needs PHOTON_URL and cannot be used with --offline")
		}
		c, err := a.Geocoder.Geocode(cmd.Context(), address)
		if err != nil {
			return err
		}
		start = c.Point()
	}

	out := cmd.OutOrStdout()
	var onRoute func(domain.Route)
	if stream {
		enc := json.NewEncoder(out)
		onRoute = func(r domain.Route) {
			_ = enc.Encode(dto.StreamEvent{Kind: "route", Route: dto.RouteFeature(r, 0)})
		}
	}

	routes, err := a.Finder.FindLoopRoutes(cmd.Context(), start, miles, polygon, onRoute)
	if err != nil {
		return err
	}
	if stream {
		return json.NewEncoder(out).Encode(dto.StreamEvent{Kind: "result", Result: dto.RouteCollection(routes)})
	}
	return printRoutes(out, routes)
}

func runRoute(cmd *cobra.Command, args []string) error {
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")

	start, err := parsePoint(startFlag)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	end, err := parsePoint(endFlag)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	routes, err := a.Finder.FindPointToPointRoutes(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	return printRoutes(cmd.OutOrStdout(), routes)
}

func printRoutes(w io.Writer, routes []domain.Route) error {
	if len(routes) == 0 {
		return errors.New("no route found")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.RouteCollection(routes))
}
