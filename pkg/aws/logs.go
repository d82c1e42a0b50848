package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const defaultLogGroup = "/shop/services"

type logsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// LogShipper is an io.Writer that forwards each encoded log entry to a
// CloudWatch Logs stream. Delivery failures go to stderr and never fail the
// write.
type LogShipper struct {
	mu     sync.Mutex
	client logsAPI
	group  string
	stream string
}

// NewLogShipper creates the log group (if missing) and a fresh stream named
// after the service and start time. CLOUDWATCH_LOG_GROUP overrides the group.
func NewLogShipper(ctx context.Context, cfg sdkaws.Config, serviceName string) (*LogShipper, error) {
	group := os.Getenv("CLOUDWATCH_LOG_GROUP")
	if group == "" {
		group = defaultLogGroup
	}
	return newLogShipper(ctx, cloudwatchlogs.NewFromConfig(cfg), group,
		fmt.Sprintf("%s-%d", serviceName, time.Now().Unix()))
}

func newLogShipper(ctx context.Context, client logsAPI, group, stream string) (*LogShipper, error) {
	_, err := client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{LogGroupName: sdkaws.String(group)})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return nil, fmt.Errorf("create log group %s: %w", group, err)
	}
	if _, err := client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  sdkaws.String(group),
		LogStreamName: sdkaws.String(stream),
	}); err != nil {
		return nil, fmt.Errorf("create log stream %s: %w", stream, err)
	}
	return &LogShipper{client: client, group: group, stream: stream}, nil
}

func (l *LogShipper) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg == "" {
		return len(p), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  sdkaws.String(l.group),
		LogStreamName: sdkaws.String(l.stream),
		LogEvents: []types.InputLogEvent{{
			Message:   sdkaws.String(msg),
			Timestamp: sdkaws.Int64(time.Now().UnixMilli()),
		}},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cloudwatch logs: %v\n", err)
	}
	return len(p), nil
}

// Sync satisfies zapcore.WriteSyncer; every Write is already delivered.
func (l *LogShipper) Sync() error { return nil }
