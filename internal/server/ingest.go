package server

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/household-docs/internal/common"
)

// ProcessDirectory runs every accepted file under a server-local root.
// Request fields: root_path, household_id, skip_hidden (default true).
func (s *DocumentService) ProcessDirectory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.runner == nil {
		return nil, status.Error(codes.Unimplemented, "directory processing is not enabled")
	}
	log := common.LoggerFromContext(ctx, s.logger)

	root := strings.TrimSpace(field(in, "root_path"))
	if root == "" {
		return nil, common.InvalidArgumentError("root_path is required")
	}
	household := field(in, "household_id")
	if household == "" {
		household = common.HouseholdIDFromContext(ctx)
	}
	skipHidden := boolField(in, "skip_hidden", true)

	log.Info("starting directory processing", "household_id", household, "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.runner.ProcessDirectory(ctx, household, root, skipHidden)
	if err != nil {
		return nil, statusFor(err)
	}

	items := make([]any, 0, len(results))
	for _, r := range results {
		item := map[string]any{
			"source_path":  r.SourcePath,
			"hash":         r.HashHex,
			"deduplicated": r.Deduplicated,
			"doc_type":     string(r.DocumentType),
			"method":       string(r.Method),
			"error":        r.Err,
		}
		if r.Persisted.ReceiptID != "" {
			item["receipt_id"] = r.Persisted.ReceiptID
		}
		if imp := r.Persisted.Import; imp != nil {
			item["transactions_imported"] = imp.Inserted
			item["duplicates_skipped"] = imp.Duplicates
		}
		items = append(items, item)
	}
	return structpb.NewStruct(map[string]any{
		"scanned":      stats.Scanned,
		"matched":      stats.Matched,
		"succeeded":    stats.Succeeded,
		"deduplicated": stats.Deduplicated,
		"failed":       stats.Failed,
		"results":      items,
	})
}
