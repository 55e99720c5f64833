package utils

import "time"

// EstimateRemaining extrapolates the time left from the average time per processed item
func EstimateRemaining(elapsed time.Duration, processed, total int) time.Duration {
	if processed <= 0 || processed >= total {
		return 0
	}
	perItem := elapsed / time.Duration(processed)
	return perItem * time.Duration(total-processed)
}
