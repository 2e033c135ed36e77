// Пакет static — встроенные статические ресурсы UI.
// Файлы встраиваются в бинарник через //go:embed и раздаются через HTTP.
package static

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed login.html index.html app.js app.css
var content embed.FS

// FileSystem возвращает http.FileSystem для обработки запросов к /static/*.
func FileSystem() http.FileSystem {
	return http.FS(content)
}

// FS возвращает fs.FS для прямого доступа к встроенным файлам.
func FS() fs.FS {
	return content
}

// Page возвращает содержимое встроенной HTML-страницы.
func Page(name string) []byte {
	data, err := content.ReadFile(name)
	if err != nil {
		panic("static: нет встроенного файла " + name)
	}
	return data
}
