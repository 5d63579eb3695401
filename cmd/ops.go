// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/service/container"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultQueryConcurrency = 8

// withHandle opens id with flags, runs fn on the handle and closes it again.
func withHandle(ctx context.Context, svc container.Service, id uuid.UUID, flags types.OpenFlag, fn func(h uuid.UUID) (uint64, error)) (uint64, error) {
	h, err := svc.OpenContainer(ctx, id, flags)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := svc.CloseContainer(ctx, h.ID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("handle", h.ID.String()).Msg("failed to close handle")
		}
	}()
	return fn(h.ID)
}

// queryContainer reads ids through a short-lived read-only handle.
func queryContainer(ctx context.Context, svc container.Service, id uuid.UUID, ids []property.ID) (*container.QueryContainerResult, error) {
	var res *container.QueryContainerResult
	_, err := withHandle(ctx, svc, id, types.OpenReadOnly, func(h uuid.UUID) (uint64, error) {
		var err error
		res, err = svc.QueryContainer(ctx, h, ids)
		return 0, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func setProperties(ctx context.Context, svc container.Service, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error) {
	return withHandle(ctx, svc, id, types.OpenReadWrite, func(h uuid.UUID) (uint64, error) {
		return svc.SetProperties(ctx, &container.SetPropertiesRequest{
			Handle:          h,
			Properties:      props,
			ExpectedVersion: expectedVersion,
		})
	})
}

// listRow is one container in list output. Properties is nil unless the
// listing was asked to query.
type listRow struct {
	Info       *types.ContainerInfo
	Properties property.Set
	Version    uint64
}

// listContainers pages through every container matching req. With query set
// each container is queried for ids in parallel; the first failure cancels
// the rest and is returned without any rows.
func listContainers(ctx context.Context, svc container.Service, req *container.ListContainersRequest, ids []property.ID, query bool, concurrency int) ([]listRow, error) {
	var rows []listRow
	page := *req
	for {
		res, err := svc.ListContainers(ctx, &page)
		if err != nil {
			return nil, err
		}
		for _, info := range res.Containers {
			rows = append(rows, listRow{Info: info})
		}
		if !res.IsTruncated {
			break
		}
		page.ContinuationToken = res.NextContinuationToken
	}
	if !query || len(rows) == 0 {
		return rows, nil
	}

	if concurrency <= 0 {
		concurrency = defaultQueryConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range rows {
		g.Go(func() error {
			res, err := queryContainer(gctx, svc, rows[i].Info.ID, ids)
			if err != nil {
				return fmt.Errorf("query %s: %w", rows[i].Info.ID, err)
			}
			rows[i].Info = res.Info
			rows[i].Properties = res.Properties
			rows[i].Version = res.Version
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// parsePropertyNames resolves names or numeric codes in order.
func parsePropertyNames(names []string) ([]property.ID, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]property.ID, 0, len(names))
	for _, n := range names {
		id, err := property.Lookup(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseAssignments parses name=value pairs into a property set.
func parseAssignments(specs []string) (property.Set, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(property.Set, 0, len(specs))
	for _, s := range specs {
		e, err := parseAssignment(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func parseAssignment(s string) (property.Entry, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok {
		return property.Entry{}, container.NewInvalidArgumentError(fmt.Sprintf("invalid assignment %q, want name=value", s))
	}
	id, err := property.Lookup(name)
	if err != nil {
		return property.Entry{}, err
	}
	d, err := property.DescriptorFor(id)
	if err != nil {
		return property.Entry{}, err
	}
	v, err := parseValue(d, strings.TrimSpace(raw))
	if err != nil {
		return property.Entry{}, container.NewInvalidArgumentError(fmt.Sprintf("invalid value for %s: %v", d.Name, err))
	}
	return property.Entry{ID: id, Value: v}, nil
}

func parseValue(d property.Descriptor, raw string) (property.Value, error) {
	switch d.Kind {
	case property.KindString:
		return property.String(raw), nil
	case property.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return property.Value{}, err
		}
		return property.Bool(b), nil
	case property.KindEnum:
		switch d.ID {
		case property.IDChecksum:
			ct, err := property.ParseChecksumType(raw)
			if err != nil {
				return property.Value{}, err
			}
			return property.Enum(uint32(ct)), nil
		case property.IDLayoutType:
			l, err := property.ParseLayout(raw)
			if err != nil {
				return property.Value{}, err
			}
			return property.Enum(uint32(l)), nil
		}
		n, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			return property.Value{}, err
		}
		return property.Enum(uint32(n)), nil
	case property.KindUint32:
		n, err := strconv.ParseUint(raw, 0, 32)
		if err != nil {
			return property.Value{}, err
		}
		return property.Uint32(uint32(n)), nil
	case property.KindUint64:
		n, err := parseNumber(raw, d.ID == property.IDChecksumChunkSize)
		if err != nil {
			return property.Value{}, err
		}
		return property.Uint64(n), nil
	default:
		return property.Value{}, fmt.Errorf("unsupported kind %s", d.Kind)
	}
}

// parseNumber parses an unsigned integer. Sizes also accept units such as
// "16KiB".
func parseNumber(s string, size bool) (uint64, error) {
	if n, err := strconv.ParseUint(s, 0, 64); err == nil {
		return n, nil
	} else if !size {
		return 0, err
	}
	return humanize.ParseBytes(s)
}
