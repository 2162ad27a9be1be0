package config

type WorkerKeyStruct struct {
	EvaluateSubmissionsQueue string
	ResultNotificationsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	EvaluateSubmissionsQueue: "evaluate_submissions_queue",
	ResultNotificationsQueue: "result_notifications_queue",
}
