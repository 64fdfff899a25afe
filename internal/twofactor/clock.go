package twofactor

import "time"

// timeNow is swapped in tests to pin the TOTP step.
var timeNow = time.Now
