package scheduler

import "github.com/arenahq/bot-arena/pkg/apierr"

var errNotPaper = apierr.New(apierr.Validation, "reset is only allowed for paper bots")
