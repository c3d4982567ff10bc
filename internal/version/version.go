package version

// Version is the current version of warpmesh. Release builds set it with
//   go build -ldflags="-X 'github.com/Prajwalkadam29/Decentralized-Chat-App/internal/version.Version=v1.0.0'"
var Version = "dev"
