// Copyright 2026 The HRMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"strconv"
	"time"

	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/labstack/echo/v4"
)

func fromLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			elapsed := time.Since(start)

			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}

			path := req.URL.Path
			if path == "" {
				path = "/"
			}

			bytesIn := req.Header.Get(echo.HeaderContentLength)
			if bytesIn == "" {
				bytesIn = "0"
			}

			entry := log.Trace().
				Str("RequestId", id).
				Str("RemoteIP", c.RealIP()).
				Str("Method", req.Method).
				Str("Path", path).
				Str("Protocol", req.Proto).
				Str("UserAgent", req.UserAgent()).
				Int("Status", res.Status).
				Dur("Latency", elapsed).
				Str("BytesIn", bytesIn).
				Str("BytesOut", strconv.FormatInt(res.Size, 10))
			if err != nil {
				entry = entry.Str("Error", err.Error())
			}
			entry.Msg("HTTP Request received")
			return nil
		}
	}
}
