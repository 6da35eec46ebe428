package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/client"
	"github.com/alfredjeanlab/quillbooking/internal/server"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the QuillBooking service",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		switch transport {
		case "http":
			return httpHealth(ctx, cmd)
		case "grpc":
			return grpcHealth(ctx, cmd)
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
	},
}

func httpHealth(ctx context.Context, cmd *cobra.Command) error {
	status, err := quillClient.Health(ctx)
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(map[string]string{"status": status}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", status)
	}

	if status != "ok" {
		return fmt.Errorf("unhealthy: %s", status)
	}
	return nil
}

func grpcHealth(ctx context.Context, cmd *cobra.Command) error {
	c, err := client.NewGRPCClient(serverAddr, authToken)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer c.Close()

	resp, err := c.Check(ctx, server.ServiceName)
	if err != nil {
		return fmt.Errorf("checking health: %w", err)
	}

	if jsonOutput {
		data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", resp.GetStatus())
	}

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("unhealthy: %s", resp.GetStatus())
	}
	return nil
}

func init() {
	healthCmd.Flags().String("transport", "http", "transport protocol (http or grpc)")
}
