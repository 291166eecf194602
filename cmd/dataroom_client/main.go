package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/tee-dataroom-backend/api"
	"github.com/ruteri/tee-dataroom-backend/client"
	"github.com/ruteri/tee-dataroom-backend/cmd/flags"
	"github.com/ruteri/tee-dataroom-backend/contract"
	"github.com/ruteri/tee-dataroom-backend/discovery"
	"github.com/ruteri/tee-dataroom-backend/interfaces"
	"github.com/ruteri/tee-dataroom-backend/keystore"
	"github.com/ruteri/tee-dataroom-backend/ledger"
	"github.com/ruteri/tee-dataroom-backend/transport"
)

var roomFlag = &cli.StringFlag{
	Name:     "room",
	Required: true,
	Usage:    "data room identifier",
}

var roleFlag = &cli.StringFlag{
	Name:  "role",
	Value: "viewer",
	Usage: "requested role: 'viewer', 'contributor' or 'admin'",
}

var requestIDFlag = &cli.StringFlag{
	Name:     "request-id",
	Required: true,
	Usage:    "pending access request identifier",
}

var keyNameFlag = &cli.StringFlag{
	Name:     "key-name",
	Required: true,
	Usage:    "key name in the contract key space",
}

var formatFlag = &cli.StringFlag{
	Name:  "format",
	Value: "raw",
	Usage: "key export format: 'raw', 'pkcs8' or 'pem'",
}

var keyDataFlag = &cli.StringFlag{
	Name:     "key-data",
	Required: true,
	Usage:    "key material, base64 (or PEM for the pem format)",
}

var algorithmFlag = &cli.StringFlag{
	Name:  "algorithm",
	Value: "ecdsa-p256",
	Usage: "key algorithm for import",
}

var dataFlag = &cli.StringFlag{
	Name:     "data",
	Required: true,
	Usage:    "data to sign or verify, utf-8 text",
}

var signatureFlag = &cli.StringFlag{
	Name:     "signature",
	Required: true,
	Usage:    "signature to verify, base64",
}

var pathFlag = &cli.StringFlag{
	Name:     "path",
	Required: true,
	Usage:    "local file to upload",
}

var nameFlag = &cli.StringFlag{
	Name:  "name",
	Usage: "file name recorded in the room listing, defaults to the upload path's base name",
}

var digestFlag = &cli.StringFlag{
	Name:     "digest",
	Required: true,
	Usage:    "hex sha-256 digest of the file content",
}

var sizeFlag = &cli.Int64Flag{
	Name:  "size",
	Usage: "file size in bytes recorded in the room listing",
}

var localSeedFlag = &cli.StringFlag{
	Name:  "master-key-seed",
	Usage: "hex-encoded 32-byte seed for --local mode",
}

// session holds the connection a command runs over. In gateway mode it
// also knows the base URL for direct upload requests.
type session struct {
	client      *client.Client
	conn        interfaces.Conn
	gatewayAddr string
	local       bool
	log         *slog.Logger
}

func (s *session) close() {
	s.conn.Close()
}

func dial(cCtx *cli.Context) (*session, error) {
	logger := flags.SetupLogger(cCtx)

	appID, err := interfaces.NewAppID(cCtx.String(flags.AppFlag.Name))
	if err != nil {
		return nil, err
	}
	identity := interfaces.UserID(cCtx.String(flags.IdentityFlag.Name))
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	if cCtx.Bool(flags.LocalFlag.Name) {
		seedHex := cCtx.String(localSeedFlag.Name)
		if seedHex == "" {
			return nil, errors.New("master-key-seed is required with --local")
		}
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != 32 {
			return nil, fmt.Errorf("invalid master-key-seed: %v", err)
		}
		store, err := keystore.NewKeyStore(seed)
		if err != nil {
			return nil, err
		}
		location, err := interfaces.NewStoreLocation(cCtx.String(flags.LedgerFlag.Name))
		if err != nil {
			return nil, err
		}
		led, err := ledger.NewLedgerFactory(logger).LedgerFor(location)
		if err != nil {
			return nil, err
		}
		conn := transport.NewLoopback(led, store, identity, logger)
		return &session{
			client: client.NewClient(conn, appID, logger),
			conn:   conn,
			local:  true,
			log:    logger,
		}, nil
	}

	addr := cCtx.String(flags.GatewayAddrFlag.Name)
	if domain := cCtx.String(flags.DiscoverFlag.Name); domain != "" {
		resolver := discovery.NewResolver(cCtx.String(flags.DNSServerFlag.Name), logger)
		endpoints, err := resolver.ResolveEndpoints(domain)
		if err != nil {
			return nil, err
		}
		addr = endpoints[0].URL()
		logger.Debug("Gateway discovered", slog.String("domain", domain), slog.String("addr", addr))
	}

	conn, err := transport.NewHTTPConn(transport.HTTPConnConfig{
		ServerAddr: addr,
		App:        appID,
		Identity:   identity,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &session{
		client:      client.NewClient(conn, appID, logger),
		conn:        conn,
		gatewayAddr: addr,
		log:         logger,
	}, nil
}

func printJSON(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

// run dials a session and invokes fn with it, printing the result as JSON.
func run(cCtx *cli.Context, fn func(ctx context.Context, s *session) (any, error)) error {
	s, err := dial(cCtx)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := fn(cCtx.Context, s)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func uploadFile(ctx context.Context, s *session, roomID interfaces.RoomID, name, path string) (any, error) {
	if s.local {
		return nil, errors.New("upload requires a gateway, record the entry with add-file instead")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(path)
	}
	digest := interfaces.ComputeFileDigest(content)

	token, err := s.client.GetFileUploadToken(ctx, roomID, digest)
	if err != nil {
		return nil, err
	}

	rawToken, err := json.Marshal(token)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/api/v0/rooms/%s/files", s.gatewayAddr, roomID), bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	req.Header.Set(api.UploadTokenHeader, string(rawToken))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("upload failed: %s", string(body))
	}

	room, err := s.client.UpdateDataRoom(ctx, contract.UpdateDataRoomParams{
		DataRoomID: roomID,
		AddFiles: []contract.FileEntryParams{{
			Name:   name,
			Digest: digest.String(),
			Size:   int64(len(content)),
		}},
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func main() {
	app := &cli.App{
		Name:  "dataroom-client",
		Usage: "Operate a data room contract through a gateway",
		Flags: []cli.Flag{
			flags.AppFlag,
			flags.IdentityFlag,
			flags.GatewayAddrFlag,
			flags.DiscoverFlag,
			flags.DNSServerFlag,
			flags.LocalFlag,
			flags.LedgerFlag,
			localSeedFlag,
			flags.LogJsonFlag,
			flags.LogDebugFlag,
			flags.LogUidFlag,
			flags.LogServiceFlagFn("dataroom-client"),
		},
		Commands: []*cli.Command{
			{
				Name:  "bootstrap",
				Usage: "Claim the super admin identity and generate the server keys",
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.CreateSuperAdmin(ctx)
					})
				},
			},
			{
				Name:  "request-access",
				Usage: "Request a role on a data room",
				Flags: []cli.Flag{roomFlag, roleFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.CreateUser(ctx,
							interfaces.RoomID(cCtx.String(roomFlag.Name)),
							interfaces.Role(cCtx.String(roleFlag.Name)))
					})
				},
			},
			{
				Name:  "whoami",
				Usage: "Show the sender's user record",
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.GetUserContent(ctx)
					})
				},
			},
			{
				Name:  "list-requests",
				Usage: "List pending access request ids",
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.ListUsers(ctx)
					})
				},
			},
			{
				Name:  "approve",
				Usage: "Approve a pending access request",
				Flags: []cli.Flag{requestIDFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.ApproveUser(ctx,
							interfaces.UserRequestID(cCtx.String(requestIDFlag.Name)))
					})
				},
			},
			{
				Name:  "reset-identities",
				Usage: "Rotate the server keys and return the new public halves",
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.ResetIdentities(ctx)
					})
				},
			},
			{
				Name:  "export-storage-key",
				Usage: "Export the storage server private key",
				Flags: []cli.Flag{formatFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.ExportStorageServerPrivateKey(ctx,
							interfaces.ExportFormat(cCtx.String(formatFlag.Name)))
					})
				},
			},
			{
				Name:  "set-token-identity",
				Usage: "Select the key upload tokens are signed with",
				Flags: []cli.Flag{keyNameFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						err := s.client.SetTokenIdentity(ctx,
							interfaces.KeyName(cCtx.String(keyNameFlag.Name)))
						if err != nil {
							return nil, err
						}
						return contract.MessageResult{Message: "token identity set"}, nil
					})
				},
			},
			{
				Name:  "create-room",
				Usage: "Create a data room",
				Flags: []cli.Flag{roomFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.CreateDataRoom(ctx,
							interfaces.RoomID(cCtx.String(roomFlag.Name)))
					})
				},
			},
			{
				Name:  "lock-room",
				Usage: "Lock a data room against further modification",
				Flags: []cli.Flag{roomFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.UpdateDataRoom(ctx, contract.UpdateDataRoomParams{
							DataRoomID: interfaces.RoomID(cCtx.String(roomFlag.Name)),
							Lock:       true,
						})
					})
				},
			},
			{
				Name:  "add-file",
				Usage: "Record an already-stored file in a room listing",
				Flags: []cli.Flag{roomFlag, digestFlag, nameFlag, sizeFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						name := cCtx.String(nameFlag.Name)
						if name == "" {
							return nil, errors.New("name is required when adding by digest")
						}
						return s.client.UpdateDataRoom(ctx, contract.UpdateDataRoomParams{
							DataRoomID: interfaces.RoomID(cCtx.String(roomFlag.Name)),
							AddFiles: []contract.FileEntryParams{{
								Name:   name,
								Digest: cCtx.String(digestFlag.Name),
								Size:   cCtx.Int64(sizeFlag.Name),
							}},
						})
					})
				},
			},
			{
				Name:  "upload",
				Usage: "Upload a file to a room: mint a token, store the content, record the entry",
				Flags: []cli.Flag{roomFlag, pathFlag, nameFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return uploadFile(ctx, s,
							interfaces.RoomID(cCtx.String(roomFlag.Name)),
							cCtx.String(nameFlag.Name),
							cCtx.String(pathFlag.Name))
					})
				},
			},
			{
				Name:  "upload-token",
				Usage: "Mint an upload token for a content digest",
				Flags: []cli.Flag{roomFlag, digestFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						digest, err := interfaces.NewFileDigestFromHex(cCtx.String(digestFlag.Name))
						if err != nil {
							return nil, err
						}
						return s.client.GetFileUploadToken(ctx,
							interfaces.RoomID(cCtx.String(roomFlag.Name)), digest)
					})
				},
			},
			{
				Name:  "list-rooms",
				Usage: "List data rooms visible to the sender",
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.ListDataRooms(ctx)
					})
				},
			},
			{
				Name:  "room-content",
				Usage: "Show a room's state and file listing",
				Flags: []cli.Flag{roomFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.GetDataRoomContent(ctx,
							interfaces.RoomID(cCtx.String(roomFlag.Name)))
					})
				},
			},
			{
				Name:  "public-keys",
				Usage: "Show the server public keys",
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.GetPublicKeys(ctx)
					})
				},
			},
			{
				Name:  "import-key",
				Usage: "Import key material under a name",
				Flags: []cli.Flag{keyNameFlag, keyDataFlag, formatFlag, algorithmFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.ImportKey(ctx,
							interfaces.KeyName(cCtx.String(keyNameFlag.Name)),
							contract.KeyImportSpec{
								Format:    cCtx.String(formatFlag.Name),
								KeyData:   cCtx.String(keyDataFlag.Name),
								Algorithm: cCtx.String(algorithmFlag.Name),
							})
					})
				},
			},
			{
				Name:  "public-key",
				Usage: "Show one key's public half",
				Flags: []cli.Flag{keyNameFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.GetPublicKey(ctx,
							interfaces.KeyName(cCtx.String(keyNameFlag.Name)))
					})
				},
			},
			{
				Name:  "sign",
				Usage: "Sign data with a named key",
				Flags: []cli.Flag{keyNameFlag, dataFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						return s.client.Sign(ctx,
							interfaces.KeyName(cCtx.String(keyNameFlag.Name)),
							[]byte(cCtx.String(dataFlag.Name)))
					})
				},
			},
			{
				Name:  "verify",
				Usage: "Verify a signature with a named key",
				Flags: []cli.Flag{keyNameFlag, dataFlag, signatureFlag},
				Action: func(cCtx *cli.Context) error {
					return run(cCtx, func(ctx context.Context, s *session) (any, error) {
						signature, err := base64.StdEncoding.DecodeString(cCtx.String(signatureFlag.Name))
						if err != nil {
							return nil, fmt.Errorf("invalid signature encoding: %w", err)
						}
						valid, err := s.client.Verify(ctx,
							interfaces.KeyName(cCtx.String(keyNameFlag.Name)),
							[]byte(cCtx.String(dataFlag.Name)), signature)
						if err != nil {
							return nil, err
						}
						return contract.VerifyResult{Valid: valid}, nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
