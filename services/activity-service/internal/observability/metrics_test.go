package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordPublish(t *testing.T) {
	published := testutil.ToFloat64(publishedCounter)
	failed := testutil.ToFloat64(publishFailures)

	RecordPublish(true)
	RecordPublish(false)
	RecordPublish(false)

	require.Equal(t, published+1, testutil.ToFloat64(publishedCounter))
	require.Equal(t, failed+2, testutil.ToFloat64(publishFailures))
}

func TestRecordActivityPersisted(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	RecordActivityPersisted(ts)
	RecordActivityPersisted(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(activityPersistGauge))
}
