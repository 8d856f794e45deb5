package services

// Lock keys, acquired in this order when an operation needs more than one:
// pair, then request or lesson, then user.

func pairKey(studentID, tutorID string) string { return "pair:" + studentID + ":" + tutorID }

func requestKey(id string) string { return "request:" + id }

func lessonKey(id string) string { return "lesson:" + id }

func userKey(id string) string { return "user:" + id }
