package jobs

import "fmt"

// Job keys are stable per entity so the scheduler can debounce, enforce
// single-flight and self-delete by key.

func OrderPollKey(ref string) string {
	return "order:poll:" + ref
}

func PaymentPollKey(paymentID int64) string {
	return fmt.Sprintf("payment:poll:%d", paymentID)
}

func MandatePollKey(mandateID string) string {
	return "mandate:poll:" + mandateID
}

func GoalSyncKey(goalID int64) string {
	return fmt.Sprintf("goal:sync:%d", goalID)
}

func KycWatchKey(userID int64) string {
	return fmt.Sprintf("kyc:watch:%d", userID)
}
