//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package errors

import (
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	entcfg "github.com/weaviate/bytebufferpool/entities/config"
)

// GoWrapper starts f in a new goroutine and recovers from a panic in it,
// unless DISABLE_RECOVERY_ON_PANIC is set. Pool accounting panics are still
// logged with their stack so they do not disappear silently.
func GoWrapper(f func(), logger logrus.FieldLogger) {
	go func() {
		defer func() {
			if !entcfg.Enabled(os.Getenv("DISABLE_RECOVERY_ON_PANIC")) {
				if r := recover(); r != nil {
					logger.WithField("action", "go_wrapper_recover").
						WithField("stack", string(debug.Stack())).
						Errorf("Recovered from panic: %v", r)
				}
			}
		}()
		f()
	}()
}
