package export

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bggstats/internal/boardgame"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("bggstats/export")

type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// Formats lists every supported output format.
var Formats = []Format{FormatCSV, FormatJSON, FormatSQLite}

func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Extension is the file extension of the format including the leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	case FormatSQLite:
		return ".db"
	}
	return ""
}

// ResolveFilename appends the extension of `format` to `base` unless it already
// ends with it.
func ResolveFilename(base string, format Format) string {
	ext := format.Extension()
	if ext == "" || strings.HasSuffix(base, ext) {
		return base
	}
	return base + ext
}

// Write serializes games and their recommendations to `path` in the given format.
func Write(ctx context.Context, format Format, path string, games *boardgame.Games, recs boardgame.Recommendations) error {
	ctx, span := tracer.Start(ctx, "export:Write")
	defer span.End()
	span.SetAttributes(
		attribute.String("format", string(format)),
		attribute.String("path", path),
		attribute.Int("games", games.Len()),
	)

	switch format {
	case FormatCSV, FormatJSON:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if format == FormatCSV {
			err = WriteCSV(f, games, recs)
		} else {
			err = WriteJSON(f, games, recs)
		}
		if err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case FormatSQLite:
		return WriteSQLite(ctx, path, games, recs)
	}
	return fmt.Errorf("unknown output format %q", format)
}

const (
	notAvailable = "N/A"
	owned        = "Owned"
	notOwned     = "Not Owned"
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOwned(isOwned bool) string {
	if isOwned {
		return owned
	}
	return notOwned
}

func optionalInt(n *int) string {
	if n == nil {
		return notAvailable
	}
	return strconv.Itoa(*n)
}

func optionalFloat(f *float64) string {
	if f == nil {
		return notAvailable
	}
	return formatFloat(*f)
}

func optionalRank(r *boardgame.Rank) string {
	if r == nil {
		return notAvailable
	}
	return r.String()
}
