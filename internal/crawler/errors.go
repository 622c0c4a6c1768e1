package crawler

import "errors"

// ErrParse is returned when a body cannot be parsed as HTML.
var ErrParse = errors.New("parse HTML failed")

// ErrBudgetExhausted is reported in SpiderStats when a crawl stopped because
// the page or time budget ran out.
var ErrBudgetExhausted = errors.New("crawl budget exhausted")
