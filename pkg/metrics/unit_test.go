// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveUnit(t *testing.T) {
	success := testutil.ToFloat64(UnitCounter.WithLabelValues(OutcomeSuccess))
	failure := testutil.ToFloat64(UnitCounter.WithLabelValues(OutcomeFailure))
	inFlight := testutil.ToFloat64(UnitInFlightGauge)

	UnitStarted()
	UnitStarted()
	require.Equal(t, inFlight+2, testutil.ToFloat64(UnitInFlightGauge))

	ObserveUnit(300*time.Millisecond, nil)
	ObserveUnit(time.Second, errors.New("exit status 2"))

	require.Equal(t, success+1, testutil.ToFloat64(UnitCounter.WithLabelValues(OutcomeSuccess)))
	require.Equal(t, failure+1, testutil.ToFloat64(UnitCounter.WithLabelValues(OutcomeFailure)))
	require.Equal(t, inFlight, testutil.ToFloat64(UnitInFlightGauge))
}

func TestHandlerExposesUnitMetrics(t *testing.T) {
	UnitStarted()
	ObserveUnit(50*time.Millisecond, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "lockwait_unit_duration_seconds_bucket")
	require.Contains(t, body, "lockwait_unit_total")
	require.Contains(t, body, "lockwait_unit_in_flight")
}

func TestServe(t *testing.T) {
	s, err := Serve("127.0.0.1:0")
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, s.Close(ctx))
	}()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "lockwait_unit"))
}
