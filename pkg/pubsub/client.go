package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/bookings-backend/pkg/config"
	"github.com/angelmondragon/bookings-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNothingRequired   = errors.New("pubsub client needs at least one topic or subscription")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Requirements lists the resources a process depends on. They are checked
// at startup and on every Ping; Pub/Sub resources are provisioned outside
// this service and never created here.
type Requirements struct {
	Topics        []string
	Subscriptions []string
}

// PublisherRequirements is what the outbox publisher needs.
func PublisherRequirements(cfg config.PubSubConfig) Requirements {
	return Requirements{Topics: nonEmpty(cfg.VoucherTopic)}
}

// VoucherWorkerRequirements is what the voucher worker needs.
func VoucherWorkerRequirements(cfg config.PubSubConfig) Requirements {
	return Requirements{Subscriptions: nonEmpty(cfg.VoucherSubscription)}
}

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  Requirements
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, required Requirements, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if len(required.Topics)+len(required.Subscriptions) == 0 {
		return nil, errNothingRequired
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, cfg: cfg, required: required}
	if err := c.checkRequired(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"pubsub_topics":        required.Topics,
			"pubsub_subscriptions": required.Subscriptions,
		}), "pubsub client initialized")
	}
	return c, nil
}

// clientOptions uses inline service account JSON when provided and falls back
// to application default credentials otherwise.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return nil
}

func (c *Client) checkRequired(ctx context.Context) error {
	for _, topic := range c.required.Topics {
		name := resourceName(c.projectID, kindTopic, topic)
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		if err := describeLookup(kindTopic, topic, err); err != nil {
			return err
		}
	}
	for _, sub := range c.required.Subscriptions {
		name := resourceName(c.projectID, kindSubscription, sub)
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
		if err := describeLookup(kindSubscription, sub, err); err != nil {
			return err
		}
	}
	return nil
}

func describeLookup(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub %s %q does not exist", strings.TrimSuffix(kind, "s"), name)
	default:
		return fmt.Errorf("checking pubsub %s %q: %w", strings.TrimSuffix(kind, "s"), name, err)
	}
}

// Subscription accepts a subscription ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, kindSubscription, name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

func (c *Client) VoucherSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.VoucherSubscription)
}

// Publisher accepts a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := resourceName(c.projectID, kindTopic, name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// Ping re-checks that every required resource still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkRequired(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short ID into projects/<p>/<kind>/<id>; full names pass through.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", p, kind, n)
}

func nonEmpty(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
