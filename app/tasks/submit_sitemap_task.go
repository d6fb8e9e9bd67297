package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/sitemap-comb/app/submit"
)

type SubmitSitemapTask struct {
	Task
	submitter *submit.Submitter

	Result submit.SubmitResult
}

func NewSubmitSitemapTask(sitemapURL string, submitter *submit.Submitter) *SubmitSitemapTask {
	return &SubmitSitemapTask{
		Task:      NewTask(TaskTypeSubmitSitemap, sitemapURL),
		submitter: submitter,
	}
}

func (t *SubmitSitemapTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.Result = t.submitter.Submit(ctx, t.Target)

	if !t.Result.Success {
		var failed []string
		for _, r := range t.Result.Results {
			if !r.Success {
				failed = append(failed, fmt.Sprintf("%s: %s", r.Endpoint, r.Error))
			}
		}
		return fmt.Errorf("sitemap submission failed: %s", strings.Join(failed, "; "))
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"sitemap", t.Target,
		"duration", t.GetDuration(),
		"endpoints", len(t.Result.Results))

	return nil
}
