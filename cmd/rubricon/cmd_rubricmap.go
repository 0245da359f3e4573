// Package main implements the rubricon CLI commands.
// This file contains rubric map and cache commands.
package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rubricon/internal/rubricmap"
	"rubricon/internal/store"
)

var rubricmapLocate string

var rubricmapCmd = &cobra.Command{
	Use:   "rubricmap [course-id] [assignment-id]",
	Short: "Fetch and print the assignment's question-to-rubric map",
	Long: `Rubricmap fetches the map from question IDs to rubric items for an
assignment, consulting the cache first. Question item lists are fetched
from the platform in bounded concurrent batches.

With --locate, the reverse index is consulted instead and the question
owning the given rubric item is printed.`,
	Args: cobra.ExactArgs(2),
	RunE: runRubricmap,
}

func runRubricmap(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer st.Close()

	platform := rubricmap.NewPlatformClient(cfg.Platform.BaseURL, cfg.PlatformTimeout())
	svc := rubricmap.New(st, platform, cfg.CacheTTL(), cfg.BatchSize())

	m, err := svc.Get(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	logger.Info("Fetched rubric map", zap.Int("questions", len(m)))

	if rubricmapLocate != "" {
		qid, ok := rubricmap.ReverseIndex(m)[rubricmapLocate]
		if !ok {
			return fmt.Errorf("rubric item %s not found in assignment %s", rubricmapLocate, args[1])
		}
		q := m[qid]
		fmt.Printf("%s belongs to question %s  %s\n", rubricmapLocate, q.ID, q.Name)
		return nil
	}

	qids := make([]string, 0, len(m))
	for qid := range m {
		qids = append(qids, qid)
	}
	sort.Strings(qids)

	for _, qid := range qids {
		q := m[qid]
		fmt.Printf("%s  %s (%d items)\n", q.ID, q.Name, len(q.Items))
		for _, item := range q.Items {
			fmt.Printf("    %-6s %6.1f pts  %s\n", item.ID, item.Points, item.Description)
		}
	}
	return nil
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the rubric map cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show [assignment-id]",
	Short: "Show the raw cached entry for an assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		st, err := store.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open cache store: %w", err)
		}
		defer st.Close()

		raw, found, err := st.Get(ctx, rubricmap.CacheKey(args[0]))
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("No cached entry for assignment %s\n", args[0])
			return nil
		}
		fmt.Println(string(raw))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [assignment-id]",
	Short: "Drop the cached rubric map for an assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		st, err := store.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open cache store: %w", err)
		}
		defer st.Close()

		if err := st.Delete(ctx, rubricmap.CacheKey(args[0])); err != nil {
			return err
		}
		fmt.Printf("Cleared cached rubric map for assignment %s\n", args[0])
		return nil
	},
}
