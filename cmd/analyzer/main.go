package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/seanblong/repoinsight/internal/app"
	"github.com/seanblong/repoinsight/internal/config"
	"github.com/seanblong/repoinsight/pkg/models"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("repoinsight-analyzer", pflag.ExitOnError)
	platform := fs.String("platform", "local", "Repository platform (github|gitlab|local)")
	target := fs.String("repo", ".", "owner/name on GitHub, project id on GitLab, or a local path")
	gitlabURL := fs.String("gitlab-url", "https://gitlab.com", "GitLab base URL")
	author := fs.String("author", "", "Commit author to score")
	token := fs.String("token", "", "Platform access token (defaults to GITHUB_TOKEN or GITLAB_TOKEN)")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	// stdout carries the result; logs go to stderr
	zlog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	req, err := buildRequest(*platform, *target, *gitlabURL, *author, *token)
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid arguments")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize analysis service")
	}
	defer a.Close()

	res, err := a.Service.Analyze(ctx, uuid.NewString(), req)
	if err != nil {
		zlog.Error().Err(err).Msg("analysis failed")
		a.Close()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		zlog.Fatal().Err(err).Msg("failed to write result")
	}
}

// buildRequest turns command-line arguments into an analysis request.
func buildRequest(platform, target, gitlabURL, author, token string) (models.AnalysisRequest, error) {
	if strings.TrimSpace(author) == "" {
		return nil, fmt.Errorf("--author is required")
	}
	switch strings.ToLower(platform) {
	case "github":
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
		return models.GithubRequest{RepoPath: target, UserName: author, AccessToken: token}, nil
	case "gitlab":
		if token == "" {
			token = os.Getenv("GITLAB_TOKEN")
		}
		return models.GitlabRequest{BaseURL: gitlabURL, ProjectID: target, UserName: author, PrivateToken: token}, nil
	case "local":
		return models.LocalRequest{Path: target, UserName: author}, nil
	default:
		return nil, fmt.Errorf("unknown platform %q (github|gitlab|local)", platform)
	}
}
