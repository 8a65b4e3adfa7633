// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package fingerprint

import (
	"encoding/json"
	"sort"

	"github.com/attrail/attrail-go/pkg/logging"
)

// LogFields dumps a collected fingerprint at debug level, one record
// per field, sorted by field name. Intended for integration debugging;
// the GAID value itself is reduced to a presence flag.
func LogFields(logger *logging.Logger, fp Fingerprint) {
	raw, err := json.Marshal(fp)
	if err != nil {
		logger.Warn("fingerprint not serializable", "error", err.Error())
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		logger.Warn("fingerprint not serializable", "error", err.Error())
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	logger.Debug("device fingerprint collected", "field_count", len(keys))
	for _, k := range keys {
		if k == "gaid" {
			logger.Debug("fingerprint field", "name", k, "present", fp.GAID != "")
			continue
		}
		logger.Debug("fingerprint field", "name", k, "value", fields[k])
	}
}
