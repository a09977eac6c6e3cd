/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errs

import "net/http"

// Headers propagated between services.
const (
	HeaderRequestID     = "X-REQUEST-ID"
	HeaderHeaders       = "X-HEADERS"
	HeaderSharedContext = "X-SHARED-CONTEXT"
)

type Method string

const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodPut    Method = "put"
	MethodPatch  Method = "patch"
	MethodDelete Method = "delete"
)

var statusCodeMapping = map[int]int{
	http.StatusNotFound:         http.StatusBadRequest,
	http.StatusForbidden:        http.StatusUnauthorized,
	http.StatusMethodNotAllowed: http.StatusBadRequest,
}

// MapStatus translates an upstream status code into the one exposed to
// clients. Codes without a mapping are returned unchanged.
func MapStatus(code int) int {
	if mapped, ok := statusCodeMapping[code]; ok {
		return mapped
	}
	return code
}
