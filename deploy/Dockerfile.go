FROM golang:1.24-alpine AS builder

# api | worker
ARG SERVICE=api

WORKDIR /app

# Dependencies
COPY go.mod go.sum ./
RUN go mod download

# Source
COPY . .

# Build the service plus the operator CLI (token minting, migrations)
RUN CGO_ENABLED=0 GOOS=linux go build -trimpath -o /app/service ./cmd/${SERVICE} \
 && CGO_ENABLED=0 GOOS=linux go build -trimpath -o /app/admin ./cmd/admin

# Runtime
FROM alpine:3.19

RUN apk add --no-cache ca-certificates tzdata \
 && adduser -D -H salesagent

WORKDIR /app

COPY --from=builder /app/service /app/admin ./
COPY --from=builder /app/migrations ./migrations

ENV MIGRATIONS_DIR=/app/migrations

USER salesagent

# API_PORT (api) / WORKER_PORT (worker)
EXPOSE 3000 3001

CMD ["./service"]
