package sunvoy

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("sunvoy-scraper/internal/sunvoy")
