package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ai-accelerator-be/internal/apperror"
	"ai-accelerator-be/internal/pkg/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	"github.com/google/uuid"
)

// DefaultPresignExpiry bounds how long a generated download link stays valid.
const DefaultPresignExpiry = 24 * time.Hour

// Helper wraps one storage container with upload, download and presign
// operations. The container is created lazily on first use.
type Helper struct {
	client     *azblob.Client
	accountURL string
	container  string
	logger     logger.ILogger

	ensureOnce sync.Once
	ensureErr  error
}

func NewHelper(accountURL, container string, log logger.ILogger) (*Helper, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		log.Error("blob", "credential acquisition failed", map[string]interface{}{"error": err})
		return nil, apperror.Wrap(apperror.KindServiceUnavailable, "cannot authenticate against blob storage", err)
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindServiceUnavailable, "cannot create blob client", err)
	}
	return &Helper{
		client:     client,
		accountURL: strings.TrimRight(accountURL, "/"),
		container:  container,
		logger:     log,
	}, nil
}

func (h *Helper) ensureContainer(ctx context.Context) error {
	h.ensureOnce.Do(func() {
		_, err := h.client.CreateContainer(ctx, h.container, nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			h.ensureErr = apperror.Wrap(apperror.KindServiceUnavailable, "cannot create blob container", err)
		}
	})
	return h.ensureErr
}

// Upload stores the payload under a generated name and returns the blob URL.
func (h *Helper) Upload(ctx context.Context, data []byte, extension string) (string, error) {
	if err := h.ensureContainer(ctx); err != nil {
		return "", err
	}
	name := uuid.NewString()
	if extension != "" {
		name += "." + strings.TrimPrefix(extension, ".")
	}
	if _, err := h.client.UploadBuffer(ctx, h.container, name, data, nil); err != nil {
		return "", apperror.Wrap(apperror.KindServiceUnavailable, "blob upload failed", err)
	}
	return h.blobURL(name), nil
}

func (h *Helper) UploadFromPath(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperror.Wrap(apperror.KindFileProcessing, "cannot read upload source", err)
	}
	return h.Upload(ctx, data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// Download fetches a blob by URL and returns its name alongside the content.
func (h *Helper) Download(ctx context.Context, blobURL string) (string, []byte, error) {
	name, err := h.blobName(blobURL)
	if err != nil {
		return "", nil, err
	}
	resp, err := h.client.DownloadStream(ctx, h.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return "", nil, apperror.Newf(apperror.KindNotFound, "blob %q not found", name)
		}
		return "", nil, apperror.Wrap(apperror.KindFileDownload, "blob download failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, apperror.Wrap(apperror.KindFileDownload, "blob body unreadable", err)
	}
	return name, data, nil
}

// Presign issues a read-only user-delegation SAS link for one blob.
func (h *Helper) Presign(ctx context.Context, blobName string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	start := time.Now().UTC().Add(-10 * time.Second)
	end := start.Add(expiry)

	startStr := start.Format(sas.TimeFormat)
	endStr := end.Format(sas.TimeFormat)
	udc, err := h.client.ServiceClient().GetUserDelegationCredential(ctx, service.KeyInfo{
		Start:  &startStr,
		Expiry: &endStr,
	}, nil)
	if err != nil {
		h.logger.Error("blob", "user delegation key acquisition failed", map[string]interface{}{"error": err})
		return "", apperror.Wrap(apperror.KindServiceUnavailable, "cannot acquire delegation key", err)
	}

	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     start,
		ExpiryTime:    end,
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: h.container,
		BlobName:      blobName,
	}
	params, err := values.SignWithUserDelegation(udc)
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "cannot sign blob url", err)
	}
	return h.blobURL(blobName) + "?" + params.Encode(), nil
}

func (h *Helper) blobURL(name string) string {
	return fmt.Sprintf("%s/%s/%s", h.accountURL, h.container, name)
}

func (h *Helper) blobName(blobURL string) (string, error) {
	prefix := h.accountURL + "/" + h.container + "/"
	if !strings.HasPrefix(blobURL, prefix) {
		return "", apperror.Newf(apperror.KindValidation, "url %q does not belong to container %q", blobURL, h.container)
	}
	name := strings.TrimPrefix(blobURL, prefix)
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", apperror.New(apperror.KindValidation, "blob url carries no blob name")
	}
	return name, nil
}
