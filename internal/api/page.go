package api

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Facebook Profile Picture Downloader</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .container { background: white; padding: 30px; border-radius: 10px; box-shadow: 0 0 10px rgba(0,0,0,0.1); }
        h1 { color: #3b5998; text-align: center; }
        .form-group { margin-bottom: 20px; }
        label { display: block; margin-bottom: 5px; font-weight: bold; }
        input[type="url"] { width: 100%; padding: 12px; border: 1px solid #ddd; border-radius: 5px; font-size: 16px; box-sizing: border-box; }
        button { background: #3b5998; color: white; padding: 12px 24px; border: none; border-radius: 5px; cursor: pointer; font-size: 16px; width: 100%; }
        button:hover { background: #2d4373; }
        button:disabled { background: #cccccc; cursor: not-allowed; }
        .result { margin-top: 20px; padding: 15px; border-radius: 5px; display: none; }
        .success { background: #d4edda; border: 1px solid #c3e6cb; color: #155724; }
        .error { background: #f8d7da; border: 1px solid #f5c6cb; color: #721c24; }
        .result img { max-width: 100%; margin-top: 10px; border-radius: 5px; }
        .loading { text-align: center; display: none; }
        .spinner { border: 4px solid #f3f3f3; border-top: 4px solid #3b5998; border-radius: 50%; width: 30px; height: 30px; animation: spin 1s linear infinite; margin: 0 auto 10px; }
        @keyframes spin { 0% { transform: rotate(0deg); } 100% { transform: rotate(360deg); } }
    </style>
</head>
<body>
    <div class="container">
        <h1>Facebook Profile Picture Downloader</h1>
        <form id="downloadForm">
            <div class="form-group">
                <label for="url">Facebook Photo URL:</label>
                <input type="url" id="url" name="url" required placeholder="https://www.facebook.com/photo/?fbid=...">
            </div>
            <button type="submit" id="downloadBtn">Download Profile Picture</button>
        </form>

        <div class="loading" id="loading">
            <div class="spinner"></div>
            <p>Downloading profile picture... This may take a few seconds.</p>
        </div>

        <div class="result" id="result"></div>
    </div>

    <script>
        function escapeHTML(s) {
            const div = document.createElement('div');
            div.textContent = s;
            return div.innerHTML;
        }

        document.getElementById('downloadForm').addEventListener('submit', function(e) {
            e.preventDefault();

            const url = document.getElementById('url').value;
            const downloadBtn = document.getElementById('downloadBtn');
            const loading = document.getElementById('loading');
            const result = document.getElementById('result');

            downloadBtn.disabled = true;
            loading.style.display = 'block';
            result.style.display = 'none';

            fetch('/download', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ url: url })
            })
            .then(response => response.json())
            .then(data => {
                loading.style.display = 'none';
                if (data.success) {
                    result.className = 'result success';
                    result.innerHTML = ` + "`" + `
                        <h3>Download Successful!</h3>
                        <p>Profile picture downloaded successfully.</p>
                        <img src="${escapeHTML(data.data.download_url)}" alt="Downloaded picture">
                        <button onclick="downloadImage()" style="margin-top: 10px; background: #28a745;">Download Image</button>
                    ` + "`" + `;
                } else {
                    result.className = 'result error';
                    result.innerHTML = ` + "`" + `<h3>Download Failed</h3><p>${escapeHTML(data.error)}</p>` + "`" + `;
                }
                result.style.display = 'block';
            })
            .catch(error => {
                loading.style.display = 'none';
                result.className = 'result error';
                result.innerHTML = ` + "`" + `<h3>Error</h3><p>An unexpected error occurred: ${escapeHTML(error.message)}</p>` + "`" + `;
                result.style.display = 'block';
            })
            .finally(() => {
                downloadBtn.disabled = false;
            });
        });

        function downloadImage() {
            const link = document.createElement('a');
            link.href = '/download_file';
            document.body.appendChild(link);
            link.click();
            document.body.removeChild(link);
        }
    </script>
</body>
</html>
`
