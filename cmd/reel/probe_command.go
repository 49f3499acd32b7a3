package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reel/internal/fileutil"
	"reel/internal/media/ffprobe"
)

type probeRow struct {
	Path       string              `json:"path"`
	Size       int64               `json:"size"`
	Duration   ffprobe.Duration    `json:"duration"`
	Attributes *ffprobe.Attributes `json:"attributes,omitempty"`
	Audio      int                 `json:"audio_streams"`
	Error      string              `json:"error,omitempty"`
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <files...>",
		Short: "Show duration and video stream attributes of media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sigCtx, stop := signalContext(cmd.Context())
			defer stop()

			rows := make([]probeRow, 0, len(args))
			total := ffprobe.Known(0)
			for _, path := range args {
				row := probePath(sigCtx, cfg.FFprobeBinary(), cfg.ProbeTimeout(), path)
				if err := sigCtx.Err(); err != nil {
					return err
				}
				total = total.Add(row.Duration)
				rows = append(rows, row)
			}

			if jsonOutput {
				return writeJSON(cmd, rows)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderProbeRows(rows, total))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output probe results as JSON")
	return cmd
}

func probePath(ctx context.Context, binary string, timeout time.Duration, path string) probeRow {
	row := probeRow{Path: path}
	if size, ok := fileutil.SizeIfExists(path); ok {
		row.Size = size
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result, err := ffprobe.Inspect(ctx, binary, path)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.Duration = result.Duration()
	if stream, ok := result.FirstVideoStream(); ok {
		row.Attributes = &ffprobe.Attributes{
			Codec:  stream.CodecName,
			Width:  stream.Width,
			Height: stream.Height,
			PixFmt: stream.PixFmt,
		}
	}
	row.Audio = result.AudioStreamCount()
	if row.Size == 0 {
		row.Size = result.SizeBytes()
	}
	return row
}

func renderProbeRows(rows []probeRow, total ffprobe.Duration) string {
	tableRows := make([][]string, 0, len(rows)+1)
	for _, row := range rows {
		video := "-"
		if row.Attributes != nil {
			video = row.Attributes.String()
		}
		if row.Error != "" {
			video = "unreadable"
		}
		tableRows = append(tableRows, []string{
			row.Path,
			row.Duration.String(),
			video,
			strconv.Itoa(row.Audio),
			humanize.Bytes(uint64(row.Size)),
		})
	}
	out := renderTable(
		[]string{"File", "Duration", "Video", "Audio", "Size"},
		tableRows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight},
	)
	return out + "\nTotal duration: " + total.String() + "\n"
}
