package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/go-github/v59/github"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	CacheBackendMemory    = "memory"
	CacheBackendFirestore = "firestore"
	CacheBackendS3        = "s3"
)

type ServerConfig struct {
	Stage                       string        `envconfig:"STAGE" default:"dev"`
	ProjectID                   string        `envconfig:"GOOGLE_CLOUD_PROJECT_ID" default:"update-relay"`
	Port                        string        `envconfig:"PORT" default:"3000"`
	BindAddress                 string        `envconfig:"BIND_ADDRESS"`
	GitHubToken                 string        `envconfig:"GITHUB_TOKEN"`
	GitHubAPIURL                string        `envconfig:"GITHUB_API_URL"`
	DownloadBaseURL             string        `envconfig:"DOWNLOAD_BASE_URL" default:"https://github.com"`
	DocumentationURL            string        `envconfig:"DOCUMENTATION_URL" default:"https://github.com/electron/update.electronjs.org"`
	UpstreamRetryMax            int           `envconfig:"UPSTREAM_RETRY_MAX" default:"3"`
	UpstreamTimeout             time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	CacheBackend                string        `envconfig:"CACHE_BACKEND" default:"memory"`
	CacheTTL                    time.Duration `envconfig:"CACHE_TTL" default:"15m"`
	LockTimeout                 time.Duration `envconfig:"LOCK_TIMEOUT" default:"1m"`
	LockRetryDelay              time.Duration `envconfig:"LOCK_RETRY_DELAY" default:"500ms"`
	FirestoreCollectionPrefix   string        `envconfig:"FIRESTORE_COLLECTION_PREFIX" default:"dev"`
	CloudflareR2Bucket          string        `envconfig:"CLOUDFLARE_R2_BUCKET"`
	CloudflareR2AccessKeyID     string        `envconfig:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	CloudflareR2SecretAccessKey string        `envconfig:"CLOUDFLARE_R2_SECRET_ACCESS_KEY"`
	CloudflareAccountID         string        `envconfig:"CLOUDFLARE_ACCOUNT_ID"`
	DisableMetrics              bool          `envconfig:"DISABLE_METRICS"`
	LogLevel                    string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat                   string        `envconfig:"LOG_FORMAT" default:"text"`
	Version                     string
}

func NewServerConfigFromEnv() (*ServerConfig, error) {
	var sCfg ServerConfig
	err := envconfig.Process("", &sCfg)
	if err != nil {
		return nil, err
	}
	if sCfg.GitHubToken == "" {
		sCfg.GitHubToken = os.Getenv("GH_TOKEN")
	}
	if err := sCfg.Validate(); err != nil {
		return nil, err
	}
	return &sCfg, nil
}

func (s *ServerConfig) Validate() error {
	switch s.CacheBackend {
	case CacheBackendMemory, CacheBackendFirestore:
	case CacheBackendS3:
		if s.CloudflareR2Bucket == "" || s.CloudflareR2AccessKeyID == "" || s.CloudflareR2SecretAccessKey == "" || s.CloudflareAccountID == "" {
			return fmt.Errorf("cache backend %s requires CLOUDFLARE_R2_BUCKET, CLOUDFLARE_R2_ACCESS_KEY_ID, CLOUDFLARE_R2_SECRET_ACCESS_KEY and CLOUDFLARE_ACCOUNT_ID", s.CacheBackend)
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", s.CacheBackend)
	}
	if s.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

func (s *ServerConfig) IsProduction() bool {
	return s.Stage == "production"
}

func (s *ServerConfig) GetServerAddr() string {
	return s.BindAddress + ":" + s.Port
}

// CreateLogger configures a logger from LOG_LEVEL and LOG_FORMAT.
func (s *ServerConfig) CreateLogger() *logrus.Logger {
	log := logrus.New()
	if s.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	if level, err := logrus.ParseLevel(s.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}

// CreateRetryableClient returns the client used for every upstream request.
func (s *ServerConfig) CreateRetryableClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = s.UpstreamRetryMax
	client.HTTPClient.Timeout = s.UpstreamTimeout
	return client
}

func (s *ServerConfig) CreateGitHubClient(httpClient *retryablehttp.Client) (*github.Client, error) {
	var client *http.Client
	if s.GitHubToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient.StandardClient())
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: s.GitHubToken}))
	} else {
		client = httpClient.StandardClient()
	}
	ghClient := github.NewClient(client)
	if s.GitHubAPIURL != "" {
		return ghClient.WithEnterpriseURLs(s.GitHubAPIURL, s.GitHubAPIURL)
	}
	return ghClient, nil
}

func (s *ServerConfig) CreateFirestoreClient(ctx context.Context) (*firestore.Client, error) {
	return firestore.NewClient(ctx, s.ProjectID)
}

func (s *ServerConfig) r2CloudflareEndpointResolver(_, _ string, _ ...interface{}) (aws.Endpoint, error) {
	return aws.Endpoint{
		URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.CloudflareAccountID),
	}, nil
}

func (s *ServerConfig) CreateS3Client(ctx context.Context) (*s3.Client, error) {
	staticCredentialsProvider := credentials.NewStaticCredentialsProvider(
		s.CloudflareR2AccessKeyID,
		s.CloudflareR2SecretAccessKey,
		"",
	)
	s3Cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(s.r2CloudflareEndpointResolver)),
		awsConfig.WithCredentialsProvider(staticCredentialsProvider),
		awsConfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Cfg), nil
}
