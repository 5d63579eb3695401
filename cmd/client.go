// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/client"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/service/container"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"
	"github.com/LeeDigitalWorks/zapprops/pkg/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
)

var containerCmd = &cobra.Command{
	Use:     "container",
	Aliases: []string{"cont"},
	Short:   "Container client commands",
	Long: `Commands that talk to zapprops servers to create, open, query, update,
snapshot, list and destroy containers.`,
}

var containerCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a container",
	Args:  cobra.NoArgs,
	Run:   runContainerCreate,
}

var containerOpenCmd = &cobra.Command{
	Use:   "open <container-id>",
	Short: "Open a container and print the handle",
	Long: `Open a container and print the handle id. The handle stays open on the
server until it is closed or idles out, and can be passed to --handle.`,
	Args: cobra.ExactArgs(1),
	Run:  runContainerOpen,
}

var containerCloseCmd = &cobra.Command{
	Use:   "close <handle>",
	Short: "Close a container handle",
	Args:  cobra.ExactArgs(1),
	Run:   runContainerClose,
}

var containerQueryCmd = &cobra.Command{
	Use:   "query <container-id> [property...]",
	Short: "Query container properties",
	Long: `Query container properties by name ("checksum") or code ("0x1004").
Without properties every property is returned. Unless --handle is given a
read-only handle is opened for the query and closed afterwards.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runContainerQuery,
}

var containerSetCmd = &cobra.Command{
	Use:   "set <container-id> name=value...",
	Short: "Update mutable container properties",
	Args:  cobra.MinimumNArgs(2),
	Run:   runContainerSet,
}

var containerSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Container snapshot commands",
}

var containerSnapshotCreateCmd = &cobra.Command{
	Use:   "create <container-id>",
	Short: "Record a snapshot epoch",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotCreate,
}

var containerSnapshotDestroyCmd = &cobra.Command{
	Use:   "destroy <container-id> <epoch>",
	Short: "Remove a snapshot epoch",
	Args:  cobra.ExactArgs(2),
	Run:   runSnapshotDestroy,
}

var containerDestroyCmd = &cobra.Command{
	Use:   "destroy <container-id>",
	Short: "Destroy a container",
	Args:  cobra.ExactArgs(1),
	Run:   runContainerDestroy,
}

var containerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List containers",
	Long: `List containers ordered by id. With --query each listed container is
also queried for the named properties; the first failing query aborts the
listing.`,
	Args: cobra.NoArgs,
	Run:  runContainerList,
}

func init() {
	rootCmd.AddCommand(containerCmd)
	containerCmd.AddCommand(containerCreateCmd, containerOpenCmd, containerCloseCmd,
		containerQueryCmd, containerSetCmd, containerSnapshotCmd, containerDestroyCmd, containerListCmd)
	containerSnapshotCmd.AddCommand(containerSnapshotCreateCmd, containerSnapshotDestroyCmd)

	pf := containerCmd.PersistentFlags()
	pf.StringSlice("servers", []string{"localhost:8090"}, "Container server addresses (host:port)")
	pf.Duration("request_timeout", 10*time.Second, "Timeout for each request attempt")
	pf.Int("max_retries", 3, "Attempts per request across servers")
	pf.String("tls_ca_file", "", "CA file used to verify servers; enables TLS")
	pf.String("tls_cert_file", "", "Client certificate for mutual TLS")
	pf.String("tls_key_file", "", "Client key for mutual TLS")
	pf.StringP("output", "o", "table", "Output format (table, json)")
	viper.BindPFlags(pf)

	addCreateFlags(containerCreateCmd.Flags())
	containerCreateCmd.MarkFlagRequired("pool")

	containerOpenCmd.Flags().Bool("rw", false, "Open read-write")
	containerQueryCmd.Flags().String("handle", "", "Query through an already open handle")
	containerSetCmd.Flags().Uint64("expected_version", 0, "Fail unless the current version matches")
	containerSnapshotCreateCmd.Flags().Uint64("epoch", 0, "Snapshot epoch (default: current time)")
	containerDestroyCmd.Flags().Bool("force", false, "Evict open handles")

	lf := containerListCmd.Flags()
	lf.String("pool", "", "Only list containers in this pool")
	lf.Int("page_size", 0, "Containers fetched per request (0 = server default)")
	lf.StringSlice("query", nil, "Properties to query for every listed container")
	lf.Int("concurrency", defaultQueryConcurrency, "Parallel queries for --query")
}

func addCreateFlags(f *pflag.FlagSet) {
	f.String("pool", "", "Pool UUID (required)")
	f.String("id", "", "Container UUID (generated when empty)")
	f.String("type", "POSIX", fmt.Sprintf("Container type %v", property.ContainerTypes()))
	f.String("label", "", "Container label")
	f.String("checksum", "", "Checksum algorithm (crc16, crc32, adler32, crc64, sha1, sha256, sha512, default); empty disables")
	f.String("chunk_size", "", "Checksum chunk size, e.g. 16KiB (default 16384)")
	f.Bool("server_verify", false, "Verify checksums on the server")
	f.Uint32("redundancy_factor", 0, "Redundancy factor")
	f.Uint64("snapshot_max", 0, "Maximum number of snapshots (0 = unlimited)")
	f.StringSlice("property", nil, "Extra settable properties as name=value")
}

// newContainerClient dials the configured servers.
func newContainerClient(cmd *cobra.Command) (*client.ContainerClientPool, error) {
	f := NewFlagLoader(cmd)

	var dialOpts []grpc.DialOption
	tlsCfg := utils.TLSConfig{
		CAFile:   f.String("tls_ca_file"),
		CertFile: f.String("tls_cert_file"),
		KeyFile:  f.String("tls_key_file"),
	}
	if tlsCfg.Enabled() {
		opt, err := utils.GetDialOption(tlsCfg)
		if err != nil {
			return nil, fmt.Errorf("load TLS credentials: %w", err)
		}
		dialOpts = append(dialOpts, opt)
	}

	return client.NewContainerClientPool(client.ContainerClientPoolConfig{
		SeedAddrs:      f.StringSlice("servers"),
		RequestTimeout: f.Duration("request_timeout"),
		MaxRetries:     f.Int("max_retries"),
		DialOpts:       dialOpts,
	})
}

// withClient runs fn against a fresh client and exits non-zero on error.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, svc container.Service, out *printer) error) {
	utils.LoadConfiguration("zapprops", false)

	c, err := newContainerClient(cmd)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create client")
	}
	defer c.Close()

	out := newPrinter(cmd.OutOrStdout(), NewFlagLoader(cmd).String("output"))
	if err := fn(cmd.Context(), c, out); err != nil {
		printError(cmd, err)
		c.Close()
		os.Exit(1)
	}
}

func printError(cmd *cobra.Command, err error) {
	e := container.FromError(err)
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s (%s)\n", e.Message, e.Code)
}

func parseUUIDArg(name, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, container.NewInvalidArgumentError(fmt.Sprintf("invalid %s %q", name, s))
	}
	return id, nil
}

func runContainerCreate(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		req, err := createRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		res, err := svc.CreateContainer(ctx, req)
		if err != nil {
			return err
		}
		return out.container(res.Info, res.Properties, res.Version)
	})
}

func createRequestFromFlags(cmd *cobra.Command) (*container.CreateContainerRequest, error) {
	f := cmd.Flags()
	poolStr, _ := f.GetString("pool")
	poolID, err := parseUUIDArg("pool id", poolStr)
	if err != nil {
		return nil, err
	}
	var containerID uuid.UUID
	if s, _ := f.GetString("id"); s != "" {
		if containerID, err = parseUUIDArg("container id", s); err != nil {
			return nil, err
		}
	}

	opts := property.CreateOptions{}
	opts.Type, _ = f.GetString("type")
	opts.Label, _ = f.GetString("label")
	opts.ServerVerify, _ = f.GetBool("server_verify")
	opts.RedundancyFactor, _ = f.GetUint32("redundancy_factor")
	opts.SnapshotMax, _ = f.GetUint64("snapshot_max")

	if s, _ := f.GetString("checksum"); s != "" {
		ct, err := property.ParseChecksumType(s)
		if err != nil {
			return nil, err
		}
		opts.ChecksumEnabled = ct.Enabled()
		opts.ChecksumType = ct
	}
	if s, _ := f.GetString("chunk_size"); s != "" {
		v, err := parseNumber(s, true)
		if err != nil {
			return nil, container.NewInvalidArgumentError(fmt.Sprintf("invalid chunk size %q", s))
		}
		opts.ChunkSize = v
	}
	extra, _ := f.GetStringSlice("property")
	if opts.Entries, err = parseAssignments(extra); err != nil {
		return nil, err
	}

	return &container.CreateContainerRequest{
		PoolID:      poolID,
		ContainerID: containerID,
		Options:     opts,
	}, nil
}

func runContainerOpen(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		id, err := parseUUIDArg("container id", args[0])
		if err != nil {
			return err
		}
		flags := types.OpenReadOnly
		if rw, _ := cmd.Flags().GetBool("rw"); rw {
			flags = types.OpenReadWrite
		}
		h, err := svc.OpenContainer(ctx, id, flags)
		if err != nil {
			return err
		}
		return out.handle(h)
	})
}

func runContainerClose(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		h, err := parseUUIDArg("handle", args[0])
		if err != nil {
			return err
		}
		return svc.CloseContainer(ctx, h)
	})
}

func runContainerQuery(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		id, err := parseUUIDArg("container id", args[0])
		if err != nil {
			return err
		}
		ids, err := parsePropertyNames(args[1:])
		if err != nil {
			return err
		}

		var res *container.QueryContainerResult
		if s, _ := cmd.Flags().GetString("handle"); s != "" {
			h, err := parseUUIDArg("handle", s)
			if err != nil {
				return err
			}
			res, err = svc.QueryContainer(ctx, h, ids)
			if err != nil {
				return err
			}
		} else if res, err = queryContainer(ctx, svc, id, ids); err != nil {
			return err
		}
		return out.container(res.Info, res.Properties, res.Version)
	})
}

func runContainerSet(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		id, err := parseUUIDArg("container id", args[0])
		if err != nil {
			return err
		}
		props, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		expected, _ := cmd.Flags().GetUint64("expected_version")

		version, err := setProperties(ctx, svc, id, props, expected)
		if err != nil {
			return err
		}
		return out.version(id, version)
	})
}

func runSnapshotCreate(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		id, err := parseUUIDArg("container id", args[0])
		if err != nil {
			return err
		}
		epoch, _ := cmd.Flags().GetUint64("epoch")
		epoch, err = withHandle(ctx, svc, id, types.OpenReadWrite, func(h uuid.UUID) (uint64, error) {
			return svc.CreateSnapshot(ctx, h, epoch)
		})
		if err != nil {
			return err
		}
		return out.snapshot(id, epoch)
	})
}

func runSnapshotDestroy(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		id, err := parseUUIDArg("container id", args[0])
		if err != nil {
			return err
		}
		epoch, err := parseNumber(args[1], false)
		if err != nil || epoch == 0 {
			return container.NewInvalidArgumentError(fmt.Sprintf("invalid epoch %q", args[1]))
		}
		_, err = withHandle(ctx, svc, id, types.OpenReadWrite, func(h uuid.UUID) (uint64, error) {
			return epoch, svc.DestroySnapshot(ctx, h, epoch)
		})
		return err
	})
}

func runContainerDestroy(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		id, err := parseUUIDArg("container id", args[0])
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		return svc.DestroyContainer(ctx, id, force)
	})
}

func runContainerList(cmd *cobra.Command, args []string) {
	withClient(cmd, func(ctx context.Context, svc container.Service, out *printer) error {
		f := cmd.Flags()
		req := &container.ListContainersRequest{}
		if s, _ := f.GetString("pool"); s != "" {
			poolID, err := parseUUIDArg("pool id", s)
			if err != nil {
				return err
			}
			req.PoolID = poolID
		}
		req.MaxContainers, _ = f.GetInt("page_size")

		names, _ := f.GetStringSlice("query")
		ids, err := parsePropertyNames(names)
		if err != nil {
			return err
		}
		concurrency, _ := f.GetInt("concurrency")

		rows, err := listContainers(ctx, svc, req, ids, len(names) > 0, concurrency)
		if err != nil {
			return err
		}
		return out.list(rows, ids)
	})
}
