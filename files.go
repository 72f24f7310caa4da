package driveflow

import (
	"context"

	"github.com/driveflow/driveflow/fileops"
	"github.com/driveflow/driveflow/hooks"
	"github.com/driveflow/driveflow/internal/redact"
)

// Resource operations. Each call builds a short-lived resource client for
// the supplied token and wraps the provider call in the resource-operation
// hook pair.

// ListFiles lists a remote directory.
func (c *Client) ListFiles(ctx context.Context, accessToken, dir string, opts fileops.ListOptions) ([]fileops.Entry, error) {
	var entries []fileops.Entry
	err := c.runOperation(ctx, "list", accessToken, map[string]any{"path": dir}, func(ctx context.Context, fc *fileops.Client) error {
		var err error
		entries, err = fc.List(ctx, dir, opts)
		return err
	})
	return entries, err
}

// FileInfo returns metadata for one remote path.
func (c *Client) FileInfo(ctx context.Context, accessToken, path string) (*fileops.Entry, error) {
	var entry *fileops.Entry
	err := c.runOperation(ctx, "info", accessToken, map[string]any{"path": path}, func(ctx context.Context, fc *fileops.Client) error {
		var err error
		entry, err = fc.Info(ctx, path)
		return err
	})
	return entry, err
}

// DownloadFile streams a remote file to a local path.
func (c *Client) DownloadFile(ctx context.Context, accessToken, remote, local string, progress fileops.Progress) error {
	return c.runOperation(ctx, "download", accessToken, map[string]any{"remote": remote, "local": local}, func(ctx context.Context, fc *fileops.Client) error {
		return fc.Download(ctx, remote, local, progress)
	})
}

// UploadFile sends a local file to a remote path.
func (c *Client) UploadFile(ctx context.Context, accessToken, local, remote string, progress fileops.Progress) error {
	return c.runOperation(ctx, "upload", accessToken, map[string]any{"local": local, "remote": remote}, func(ctx context.Context, fc *fileops.Client) error {
		return fc.Upload(ctx, local, remote, progress)
	})
}

// CopyFile duplicates a remote file or directory.
func (c *Client) CopyFile(ctx context.Context, accessToken, source, dest string) error {
	return c.runOperation(ctx, "copy", accessToken, map[string]any{"source": source, "dest": dest}, func(ctx context.Context, fc *fileops.Client) error {
		return fc.Copy(ctx, source, dest)
	})
}

// MoveFile relocates a remote file or directory.
func (c *Client) MoveFile(ctx context.Context, accessToken, source, dest string) error {
	return c.runOperation(ctx, "move", accessToken, map[string]any{"source": source, "dest": dest}, func(ctx context.Context, fc *fileops.Client) error {
		return fc.Move(ctx, source, dest)
	})
}

// DeleteFile removes a remote file or directory.
func (c *Client) DeleteFile(ctx context.Context, accessToken, path string) error {
	return c.runOperation(ctx, "delete", accessToken, map[string]any{"path": path}, func(ctx context.Context, fc *fileops.Client) error {
		return fc.Delete(ctx, path)
	})
}

// Mkdir creates a remote directory.
func (c *Client) Mkdir(ctx context.Context, accessToken, path string) error {
	return c.runOperation(ctx, "mkdir", accessToken, map[string]any{"path": path}, func(ctx context.Context, fc *fileops.Client) error {
		return fc.Mkdir(ctx, path)
	})
}

// runOperation wraps one resource-provider call in the BEFORE/AFTER
// resource-operation hooks. The access token only enters hook data masked.
func (c *Client) runOperation(ctx context.Context, op, accessToken string, data map[string]any, fn func(context.Context, *fileops.Client) error) error {
	hookData := map[string]any{
		"operation":    op,
		"access_token": redact.Token(accessToken),
	}
	for k, v := range data {
		hookData[k] = v
	}
	hc := c.newHookContext(hooks.BeforeResourceOperation, hookData)

	if err := c.runBeforeHooks(ctx, hooks.BeforeResourceOperation, hc); err != nil {
		return err
	}

	fc, err := fileops.NewClient(ctx, c.cfg.ResourceBaseURL, accessToken, c.log.With().Str("component", "fileops").Logger())
	if err == nil {
		err = fn(ctx, fc)
	}

	after := map[string]any{}
	if err != nil {
		after["error"] = err.Error()
	}
	afterCtx := c.nextHookContext(hc, hooks.AfterResourceOperation, after)
	if res := c.pipeline.ExecuteSync(ctx, hooks.AfterResourceOperation, afterCtx); !res.Success {
		c.log.Warn().Str("operation", op).Str("reason", res.Err).Msg("after-resource-operation hook reported failure")
	}
	return err
}
